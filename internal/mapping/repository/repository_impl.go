package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/eventmirror/pretix-bridge/internal/mapping/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type store struct {
	db  *gorm.DB
	log *zap.Logger

	mu        sync.Mutex
	events    map[snowflake.ID]*domain.EventRecord
	subEvents map[snowflake.ID]*domain.SubEventRecord
}

func New(p Params) domain.Store {
	return &store{
		db:        p.DB,
		log:       p.Log.Named("mapping.store"),
		events:    make(map[snowflake.ID]*domain.EventRecord),
		subEvents: make(map[snowflake.ID]*domain.SubEventRecord),
	}
}

func (s *store) GetEvent(ctx context.Context, eventID snowflake.ID, forceRefresh bool) (*domain.EventRecord, error) {
	if !forceRefresh {
		s.mu.Lock()
		rec, ok := s.events[eventID]
		s.mu.Unlock()
		if ok {
			return rec, nil
		}
	}

	var row domain.EventMapping
	err := s.db.WithContext(ctx).First(&row, "event_id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rec, err := decodeEventRow(row)
	if err != nil {
		return nil, err
	}
	s.cacheEvent(rec)
	return rec, nil
}

func (s *store) FindEventBySlugs(ctx context.Context, organizerSlug, pretixEventSlug string) (*domain.EventRecord, error) {
	var row domain.EventMapping
	err := s.db.WithContext(ctx).
		First(&row, "organizer_slug = ? AND pretix_event_slug = ?", organizerSlug, pretixEventSlug).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rec, err := decodeEventRow(row)
	if err != nil {
		return nil, err
	}
	s.cacheEvent(rec)
	return rec, nil
}

func (s *store) UpsertEvent(ctx context.Context, eventID snowflake.ID, organizerSlug, pretixEventSlug string, data domain.EventData) (*domain.EventRecord, error) {
	existing, err := s.GetEvent(ctx, eventID, true)
	if err != nil {
		return nil, err
	}

	merged := data
	merged.Version = domain.EventDataVersion
	if existing != nil {
		merged = existing.Data.Merge(data)
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}

	row := domain.EventMapping{
		EventID:         eventID,
		OrganizerSlug:   organizerSlug,
		PretixEventSlug: pretixEventSlug,
		Data:            encoded,
		UpdatedAt:       time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"organizer_slug", "pretix_event_slug", "data", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}

	rec := &domain.EventRecord{
		EventID:         eventID,
		OrganizerSlug:   organizerSlug,
		PretixEventSlug: pretixEventSlug,
		Data:            merged,
	}
	s.cacheEvent(rec)
	return rec, nil
}

func (s *store) DeleteEvent(ctx context.Context, eventID snowflake.ID) error {
	err := s.db.WithContext(ctx).
		Delete(&domain.EventMapping{}, "event_id = ?", eventID).Error
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.events, eventID)
	s.mu.Unlock()
	return nil
}

func (s *store) GetSubEvent(ctx context.Context, itemID snowflake.ID, forceRefresh bool) (*domain.SubEventRecord, error) {
	if !forceRefresh {
		s.mu.Lock()
		rec, ok := s.subEvents[itemID]
		s.mu.Unlock()
		if ok {
			return rec, nil
		}
	}

	var row domain.SubEventMapping
	err := s.db.WithContext(ctx).
		First(&row, "field_name = ? AND item_id = ?", domain.DateItemField, itemID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rec, err := decodeSubEventRow(row)
	if err != nil {
		return nil, err
	}
	s.cacheSubEvent(rec)
	return rec, nil
}

func (s *store) GetSubEventByRemoteID(ctx context.Context, pretixSubEventID int64) (*domain.SubEventRecord, error) {
	var row domain.SubEventMapping
	err := s.db.WithContext(ctx).
		First(&row, "pretix_subevent_id = ?", pretixSubEventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rec, err := decodeSubEventRow(row)
	if err != nil {
		return nil, err
	}
	s.cacheSubEvent(rec)
	return rec, nil
}

func (s *store) UpsertSubEvent(ctx context.Context, itemID snowflake.ID, pretixSubEventID int64, data domain.SubEventData) (*domain.SubEventRecord, error) {
	data.Version = domain.SubEventDataVersion
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	row := domain.SubEventMapping{
		FieldName:        domain.DateItemField,
		ItemID:           itemID,
		PretixSubEventID: pretixSubEventID,
		Data:             encoded,
		UpdatedAt:        time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "field_name"},
				{Name: "item_id"},
				{Name: "pretix_subevent_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}

	rec := &domain.SubEventRecord{
		FieldName:        domain.DateItemField,
		ItemID:           itemID,
		PretixSubEventID: pretixSubEventID,
		Data:             data,
	}
	s.cacheSubEvent(rec)
	return rec, nil
}

func (s *store) PurgeSubEventsNotIn(ctx context.Context, keep []int64) error {
	if len(keep) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Where("pretix_subevent_id NOT IN ?", keep).
		Delete(&domain.SubEventMapping{}).Error
	if err != nil {
		return err
	}

	retained := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		retained[id] = struct{}{}
	}
	s.mu.Lock()
	for itemID, rec := range s.subEvents {
		if _, ok := retained[rec.PretixSubEventID]; !ok {
			delete(s.subEvents, itemID)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *store) cacheEvent(rec *domain.EventRecord) {
	s.mu.Lock()
	s.events[rec.EventID] = rec
	s.mu.Unlock()
}

func (s *store) cacheSubEvent(rec *domain.SubEventRecord) {
	s.mu.Lock()
	s.subEvents[rec.ItemID] = rec
	s.mu.Unlock()
}

func decodeEventRow(row domain.EventMapping) (*domain.EventRecord, error) {
	rec := &domain.EventRecord{
		EventID:         row.EventID,
		OrganizerSlug:   row.OrganizerSlug,
		PretixEventSlug: row.PretixEventSlug,
	}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &rec.Data); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func decodeSubEventRow(row domain.SubEventMapping) (*domain.SubEventRecord, error) {
	rec := &domain.SubEventRecord{
		FieldName:        row.FieldName,
		ItemID:           row.ItemID,
		PretixSubEventID: row.PretixSubEventID,
	}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &rec.Data); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
