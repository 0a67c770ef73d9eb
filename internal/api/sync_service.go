package api

import (
	"context"
	"time"

	"github.com/matheus3301/smsync/internal/outbox"
	"github.com/matheus3301/smsync/internal/paging"
	"github.com/matheus3301/smsync/internal/status"
	intsync "github.com/matheus3301/smsync/internal/sync"
)

// SyncService reports daemon state and requests rebuilds.
type SyncService struct {
	engine      *intsync.Engine
	machine     *status.Machine
	sender      *outbox.Sender
	pages       *paging.Registry
	profileName string
	startedAt   time.Time
}

// NewSyncService creates a sync service. sender and pages may be nil.
func NewSyncService(engine *intsync.Engine, machine *status.Machine, sender *outbox.Sender, pages *paging.Registry, profileName string) *SyncService {
	return &SyncService{
		engine:      engine,
		machine:     machine,
		sender:      sender,
		pages:       pages,
		profileName: profileName,
		startedAt:   time.Now(),
	}
}

func (s *SyncService) Desc() Desc {
	return Desc{
		Name: "SyncService",
		Unary: map[string]UnaryFunc{
			"TriggerSync":   unary(s.TriggerSync),
			"GetSyncStatus": unary(s.GetSyncStatus),
		},
	}
}

func (s *SyncService) TriggerSync(_ context.Context, _ Empty) (TriggerSyncResponse, error) {
	s.engine.Trigger()
	return TriggerSyncResponse{Accepted: true, Cycles: s.engine.Cycles()}, nil
}

func (s *SyncService) GetSyncStatus(_ context.Context, _ Empty) (SyncStatusResponse, error) {
	rep := s.engine.LastReport()
	resp := SyncStatusResponse{
		Profile:           s.profileName,
		Status:            string(s.machine.Current()),
		StatusSinceUnixMs: s.machine.Since().UnixMilli(),
		UptimeMs:          time.Since(s.startedAt).Milliseconds(),
		Cycles:            s.engine.Cycles(),
		Generation:        rep.Generation,
		Conversations:     rep.Conversations,
		Kept:              rep.Kept,
	}
	if !rep.At.IsZero() {
		resp.LastCycleAtUnixMs = rep.At.UnixMilli()
	}
	for _, t := range rep.Failed {
		resp.FailedTables = append(resp.FailedTables, t.String())
	}
	if rep.Err != nil {
		resp.LastError = rep.Err.Error()
	}
	if s.sender != nil {
		resp.InFlightSends = s.sender.InFlight()
	}
	if s.pages != nil {
		resp.OpenThreads = s.pages.OpenCount()
	}
	return resp, nil
}
