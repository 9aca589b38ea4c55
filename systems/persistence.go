package systems

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/automoto/lockstep/components"
	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/pierrec/lz4/v4"
	"github.com/quasilyte/gdata"
)

// EmergencyKey is the store item holding the latest emergency save.
const EmergencyKey = "emergency"

// ErrNoStore is returned by EmergencySave on a game without a store.
var ErrNoStore = errors.New("no save store configured")

// Store persists opaque items. *gdata.Manager implements it.
type Store interface {
	SaveItem(itemKey string, data []byte) error
	LoadItem(itemKey string) ([]byte, error)
}

// OpenStore opens the per-user data directory of appName.
func OpenStore(appName string) (Store, error) {
	m, err := gdata.Open(gdata.Config{
		AppName: appName,
	})
	if err != nil {
		return nil, fmt.Errorf("open save store: %w", err)
	}
	return m, nil
}

// Snapshot is the state written by an emergency save.
type Snapshot struct {
	Reason    string
	Label     string
	Map       string
	Time      int32
	SyncHash  []byte
	Players   []components.PlayerData
	Buildings []components.BuildingData
}

// Snapshot captures the current game state.
func (g *Game) Snapshot(reason string) Snapshot {
	hash := g.SyncHash()
	s := Snapshot{
		Reason:   reason,
		Label:    g.label,
		Map:      g.settings.Map.Name,
		Time:     g.time,
		SyncHash: hash[:],
		Players:  g.Players(),
	}
	for _, id := range g.order {
		s.Buildings = append(s.Buildings, *components.Building.Get(g.buildings[id]))
	}
	return s
}

// EmergencySave writes a compressed snapshot to the store.
func (g *Game) EmergencySave(reason string) error {
	if g.store == nil {
		return ErrNoStore
	}
	data, err := EncodeSnapshot(g.Snapshot(reason))
	if err != nil {
		return err
	}
	if err := g.store.SaveItem(EmergencyKey, data); err != nil {
		return fmt.Errorf("save %s: %w", EmergencyKey, err)
	}
	return nil
}

// LoadEmergency returns the latest emergency save, or nil if there is none.
func LoadEmergency(store Store) (*Snapshot, error) {
	data, err := store.LoadItem(EmergencyKey)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", EmergencyKey, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	s, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// PendingEmergency describes the emergency save left in store. It returns
// "" when there is none.
func PendingEmergency(store Store) (string, error) {
	snap, err := LoadEmergency(store)
	if err != nil || snap == nil {
		return "", err
	}
	return fmt.Sprintf("emergency save of %q on %s at %dms (%s)", snap.Label, snap.Map, snap.Time, snap.Reason), nil
}

// EncodeSnapshot serializes s as lz4 compressed msgpack.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	var raw []byte
	var mh codec.MsgpackHandle
	if err := codec.NewEncoderBytes(&raw, &mh).Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return s, fmt.Errorf("decompress snapshot: %w", err)
	}
	var mh codec.MsgpackHandle
	if err := codec.NewDecoderBytes(raw, &mh).Decode(&s); err != nil {
		return s, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
