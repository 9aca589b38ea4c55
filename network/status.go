package network

// PeerStatus describes one connected peer in a SessionStatus.
type PeerStatus struct {
	Name         string `json:"name"`
	Player       int32  `json:"player"`
	State        string `json:"state"`
	AckTime      int32  `json:"ack_time"`
	Lag          int32  `json:"lag"`
	DesiredSpeed uint32 `json:"desired_speed"`
	RTTMillis    int64  `json:"rtt_ms"`
}

// SessionStatus is the snapshot a host publishes at the end of every Think.
type SessionStatus struct {
	SessionID     string       `json:"session_id"`
	Map           string       `json:"map"`
	Started       bool         `json:"started"`
	CommittedTime int32        `json:"committed_time"`
	GameTime      int32        `json:"game_time"`
	NetworkSpeed  uint32       `json:"network_speed"`
	Waiting       bool         `json:"waiting"`
	SyncPending   bool         `json:"sync_pending"`
	SyncRounds    int          `json:"sync_rounds"`
	Desyncs       int          `json:"desyncs"`
	Peers         []PeerStatus `json:"peers"`
}
