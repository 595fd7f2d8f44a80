package proxy

import (
	"context"
	"time"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// The snapshot is a single row replaced wholesale on every mutating
// transition, so it is never observed partially written.
const snapshotRowID = 1

type Snapshot struct {
	ID             uint      `json:"-" gorm:"primarykey"`
	NodeID         string    `json:"nodeId"`
	IP             string    `json:"ip"`
	Port           int       `json:"port"`
	PricePerUnit   string    `json:"pricePerUnit"`
	Enabled        bool      `json:"enabled"`
	ElapsedSeconds int64     `json:"elapsedSeconds"`
	ConnectedAt    time.Time `json:"connectedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// HistoryEntry records a finished proxy session for the history view.
type HistoryEntry struct {
	ID             uint      `json:"-" gorm:"primarykey"`
	NodeID         string    `json:"nodeId"`
	IP             string    `json:"ip"`
	Port           int       `json:"port"`
	PricePerUnit   string    `json:"pricePerUnit"`
	ConnectedAt    time.Time `json:"connectedAt"`
	ElapsedSeconds int64     `json:"elapsedSeconds"`
	CreatedAt      time.Time `json:"createdAt"`
}

type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) (*SessionStore, error) {
	err := db.AutoMigrate(&Snapshot{}, &HistoryEntry{})
	if err != nil {
		return nil, errors.Wrap(err, "cannot migrate proxy session tables")
	}

	return &SessionStore{db: db}, nil
}

func (s *SessionStore) SaveSnapshot(ctx context.Context, session market.ProxySession) error {
	row := Snapshot{
		ID:             snapshotRowID,
		NodeID:         session.Node.ID,
		IP:             session.Node.IP,
		Port:           session.Node.Port,
		PricePerUnit:   session.Node.PricePerUnit.String(),
		Enabled:        session.Enabled,
		ElapsedSeconds: session.ElapsedSeconds,
		ConnectedAt:    session.ConnectedAt,
	}

	err := s.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return errors.Wrap(err, "cannot save session snapshot")
	}

	return nil
}

// LoadSnapshot returns the persisted session, or nil when none exists. A
// snapshot is advisory: the caller must re-run the handshake before treating
// the session as live.
func (s *SessionStore) LoadSnapshot(ctx context.Context) (*market.ProxySession, error) {
	var row Snapshot

	err := s.db.WithContext(ctx).First(&row, snapshotRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, errors.Wrap(err, "cannot load session snapshot")
	}

	if !row.Enabled {
		return nil, nil
	}

	price, err := decimal.NewFromString(row.PricePerUnit)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse persisted price per unit")
	}

	return &market.ProxySession{
		Node: market.ProxyNode{
			ID:           row.NodeID,
			PricePerUnit: price,
			IP:           row.IP,
			Port:         row.Port,
		},
		ConnectedAt:    row.ConnectedAt,
		ElapsedSeconds: row.ElapsedSeconds,
		Enabled:        row.Enabled,
	}, nil
}

func (s *SessionStore) ClearSnapshot(ctx context.Context) error {
	err := s.db.WithContext(ctx).Delete(&Snapshot{}, snapshotRowID).Error
	if err != nil {
		return errors.Wrap(err, "cannot clear session snapshot")
	}

	return nil
}

func (s *SessionStore) AppendHistory(ctx context.Context, session market.ProxySession) error {
	entry := HistoryEntry{
		NodeID:         session.Node.ID,
		IP:             session.Node.IP,
		Port:           session.Node.Port,
		PricePerUnit:   session.Node.PricePerUnit.String(),
		ConnectedAt:    session.ConnectedAt,
		ElapsedSeconds: session.ElapsedSeconds,
	}

	err := s.db.WithContext(ctx).Create(&entry).Error
	if err != nil {
		return errors.Wrap(err, "cannot append session history")
	}

	return nil
}

func (s *SessionStore) History(ctx context.Context) ([]HistoryEntry, error) {
	var entries []HistoryEntry

	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(err, "cannot fetch session history")
	}

	return entries, nil
}
