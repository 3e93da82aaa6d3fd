// Package maintenance runs the lifecycle of open maintenance sessions:
// start, pause, partial stop for handoff, resume and completion.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safemaint-backend/internal/model"
	"safemaint-backend/internal/parse"
	"safemaint-backend/internal/store"
)

// Final statuses recorded in the history log.
const (
	OutcomeCompleted = "CONCLUIDA"
	OutcomePartial   = "PARCIAL"
)

// ErrInvalidRequest is returned when a request is missing required fields.
var ErrInvalidRequest = errors.New("invalid maintenance request")

// HandoffNotifier alerts other shifts that a session awaits resumption.
type HandoffNotifier interface {
	NotifyHandoff(m model.ActiveMaintenance)
}

// StartRequest opens a new session from a submitted safety permit.
type StartRequest struct {
	OMID       *string      `json:"omId"`
	ScheduleID *string      `json:"scheduleId"`
	DemandID   string       `json:"demandId"`
	ARTID      string       `json:"artId"`
	ARTType    string       `json:"artType"`
	Header     model.Header `json:"header"`
	Origin     model.Origin `json:"origin"`
	User       string       `json:"-"`
}

// CompleteRequest closes a session.
type CompleteRequest struct {
	User        string `json:"-"`
	KeepHistory bool   `json:"keepHistory"`
	// FinalStatus is OutcomeCompleted or OutcomePartial. Empty means
	// completed.
	FinalStatus string `json:"finalStatus"`
}

// Service applies lifecycle actions to sessions held in the repositories.
type Service struct {
	repos    *store.Repositories
	notifier HandoffNotifier
	logger   *zap.Logger
	now      func() time.Time

	// serializes read-modify-write cycles on sessions
	mu sync.Mutex
}

// NewService creates the session service. notifier may be nil.
func NewService(repos *store.Repositories, notifier HandoffNotifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repos:    repos,
		notifier: notifier,
		logger:   logger.Named("maintenance"),
		now:      time.Now,
	}
}

// List returns every open session with its elapsed time.
func (s *Service) List() []View {
	now := s.now()
	sessions := s.repos.Maintenances.List()
	views := make([]View, 0, len(sessions))
	for _, m := range sessions {
		views = append(views, NewView(m, now))
	}
	return views
}

// Get returns one open session with its elapsed time.
func (s *Service) Get(id string) (View, error) {
	m, err := s.repos.Maintenances.Get(id)
	if err != nil {
		return View{}, err
	}
	return NewView(m, s.now()), nil
}

// Start creates a running session. A linked work order is marked in
// progress and a linked extra demand is consumed.
func (s *Service) Start(ctx context.Context, req StartRequest) (model.ActiveMaintenance, error) {
	if !req.Origin.Valid() {
		return model.ActiveMaintenance{}, fmt.Errorf("%w: unknown origin %q", ErrInvalidRequest, req.Origin)
	}
	if req.ARTID == "" {
		return model.ActiveMaintenance{}, fmt.Errorf("%w: artId is required", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	header := req.Header
	if req.OMID != nil && *req.OMID != "" {
		order, err := s.repos.Orders.Get(*req.OMID)
		if err != nil {
			return model.ActiveMaintenance{}, err
		}
		if header.OM == "" {
			header = headerFromOrder(header, order)
		}
		order.Status = model.OrderInProgress
		order.UpdatedAt = now
		if err := s.repos.Orders.Save(ctx, order); err != nil {
			return model.ActiveMaintenance{}, err
		}
	}
	header.Tag, header.Area = normalizeTag(header.Tag, header.Area)

	m := model.ActiveMaintenance{
		ID:                  uuid.NewString(),
		OMID:                req.OMID,
		ScheduleID:          req.ScheduleID,
		ARTID:               req.ARTID,
		ARTType:             req.ARTType,
		Header:              header,
		Origin:              req.Origin,
		Status:              model.StatusRunning,
		StartTime:           now,
		CurrentSessionStart: &now,
		AccumulatedTime:     0,
		OpenedBy:            req.User,
		UpdatedAt:           now,
	}
	if err := s.repos.Maintenances.Save(ctx, m); err != nil {
		return model.ActiveMaintenance{}, err
	}

	if req.Origin == model.OriginExtraDemand && req.DemandID != "" {
		if _, err := s.repos.Demands.Delete(ctx, req.DemandID); err != nil {
			s.logger.Warn("failed to consume demand", zap.String("demand", req.DemandID), zap.Error(err))
		}
	}

	s.logger.Info("maintenance started",
		zap.String("id", m.ID),
		zap.String("om", header.OM),
		zap.String("origin", string(m.Origin)),
		zap.String("user", req.User))
	return m, nil
}

// Pause stops the clock; the owner is expected to resume.
func (s *Service) Pause(ctx context.Context, id, user string) (model.ActiveMaintenance, error) {
	return s.transition(ctx, id, user, ActionPause)
}

// SetPartial stops the clock and hands the session off to any user.
func (s *Service) SetPartial(ctx context.Context, id, user string) (model.ActiveMaintenance, error) {
	m, err := s.transition(ctx, id, user, ActionPartial)
	if err != nil {
		return m, err
	}

	n := model.Notification{
		ID:        uuid.NewString(),
		Kind:      "HANDOFF",
		Title:     "Manutenção aguardando continuidade",
		Message:   fmt.Sprintf("%s %s aguardando retomada", m.Header.OM, m.Header.Tag),
		RefID:     m.ID,
		CreatedAt: s.now(),
	}
	if err := s.repos.Notifications.Save(ctx, n); err != nil {
		s.logger.Warn("failed to record handoff notification", zap.String("id", m.ID), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.NotifyHandoff(m)
	}
	return m, nil
}

// Resume restarts the clock. The resuming user becomes the owner.
func (s *Service) Resume(ctx context.Context, id, user string) (model.ActiveMaintenance, error) {
	return s.transition(ctx, id, user, ActionResume)
}

func (s *Service) transition(ctx context.Context, id, user string, action Action) (model.ActiveMaintenance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.repos.Maintenances.Get(id)
	if err != nil {
		return m, err
	}
	next, err := Next(m.Status, action)
	if err != nil {
		return m, err
	}
	if action == ActionPause && user != "" && m.OpenedBy != "" && user != m.OpenedBy {
		s.logger.Info("session paused by non-owner",
			zap.String("id", id), zap.String("owner", m.OpenedBy), zap.String("user", user))
	}

	now := s.now()
	switch next {
	case model.StatusRunning:
		m.CurrentSessionStart = &now
		if user != "" {
			m.OpenedBy = user
		}
	default:
		fold(&m, now)
	}
	m.Status = next
	m.UpdatedAt = now

	if err := s.repos.Maintenances.Save(ctx, m); err != nil {
		return m, err
	}
	s.logger.Info("maintenance "+string(action),
		zap.String("id", id),
		zap.String("status", string(next)),
		zap.Int64("accumulatedMs", m.AccumulatedTime))
	return m, nil
}

// Complete closes the session. The running interval is folded into the
// final duration, a history entry is written if requested, the session is
// removed, its safety permit is archived and, for a completed outcome, the
// linked work order is closed. The returned log is the one written, or the
// one that would have been written when history is not kept.
func (s *Service) Complete(ctx context.Context, id string, req CompleteRequest) (model.MaintenanceLog, error) {
	outcome := req.FinalStatus
	if outcome == "" {
		outcome = OutcomeCompleted
	}
	if outcome != OutcomeCompleted && outcome != OutcomePartial {
		return model.MaintenanceLog{}, fmt.Errorf("%w: unknown final status %q", ErrInvalidRequest, req.FinalStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.repos.Maintenances.Get(id)
	if err != nil {
		return model.MaintenanceLog{}, err
	}
	if _, err := Next(m.Status, ActionComplete); err != nil {
		return model.MaintenanceLog{}, err
	}

	now := s.now()
	fold(&m, now)
	duration := time.Duration(m.AccumulatedTime) * time.Millisecond

	responsible := req.User
	if responsible == "" {
		responsible = m.OpenedBy
	}
	entry := model.MaintenanceLog{
		ID:          uuid.NewString(),
		OM:          m.Header.OM,
		Tag:         m.Header.Tag,
		Area:        m.Header.Area,
		Description: m.Header.Description,
		StartTime:   m.StartTime,
		EndTime:     now,
		Duration:    FormatElapsed(duration),
		DurationMs:  m.AccumulatedTime,
		Responsible: responsible,
		Status:      outcome,
		Origin:      m.Origin,
	}
	if req.KeepHistory {
		if err := s.repos.History.Save(ctx, entry); err != nil {
			return model.MaintenanceLog{}, err
		}
	}

	if _, err := s.repos.Maintenances.Delete(ctx, id); err != nil {
		return entry, err
	}

	s.archivePermit(ctx, m.ARTID, now)
	if outcome == OutcomeCompleted {
		s.closeOrder(ctx, m.OMID, now)
		s.closeScheduleItem(ctx, m.ScheduleID)
	}

	s.logger.Info("maintenance completed",
		zap.String("id", id),
		zap.String("om", entry.OM),
		zap.String("duration", entry.Duration),
		zap.String("status", outcome),
		zap.Bool("history", req.KeepHistory))
	return entry, nil
}

func (s *Service) archivePermit(ctx context.Context, artID string, now time.Time) {
	if artID == "" {
		return
	}
	doc, err := s.repos.Documents.Get(artID)
	if err != nil {
		s.logger.Warn("permit not found for archiving", zap.String("art", artID))
		return
	}
	if doc.Status == model.DocArchived {
		return
	}
	doc.Status = model.DocArchived
	doc.UpdatedAt = now
	if err := s.repos.Documents.Save(ctx, doc); err != nil {
		s.logger.Warn("failed to archive permit", zap.String("art", artID), zap.Error(err))
	}
}

func (s *Service) closeOrder(ctx context.Context, omID *string, now time.Time) {
	if omID == nil || *omID == "" {
		return
	}
	order, err := s.repos.Orders.Get(*omID)
	if err != nil {
		s.logger.Warn("work order not found for closing", zap.String("om", *omID))
		return
	}
	order.Status = model.OrderDone
	order.UpdatedAt = now
	if err := s.repos.Orders.Save(ctx, order); err != nil {
		s.logger.Warn("failed to close work order", zap.String("om", *omID), zap.Error(err))
	}
}

func (s *Service) closeScheduleItem(ctx context.Context, scheduleID *string) {
	if scheduleID == nil || *scheduleID == "" {
		return
	}
	item, err := s.repos.Schedule.Get(*scheduleID)
	if err != nil {
		return
	}
	item.Status = OutcomeCompleted
	item.UpdatedAt = s.now()
	if err := s.repos.Schedule.Save(ctx, item); err != nil {
		s.logger.Warn("failed to close schedule item", zap.String("schedule", *scheduleID), zap.Error(err))
	}
}

// LinkOM attaches a work order to the session and rewrites its header from
// the order. The session state is not touched. A missing session or order
// leaves everything unchanged.
func (s *Service) LinkOM(ctx context.Context, id, omID string) (model.ActiveMaintenance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.repos.Maintenances.Get(id)
	if err != nil {
		return m, err
	}
	order, err := s.repos.Orders.Get(omID)
	if err != nil {
		return m, err
	}

	m.OMID = &order.ID
	m.Header = headerFromOrder(m.Header, order)
	m.Header.Tag, m.Header.Area = normalizeTag(m.Header.Tag, "")
	m.UpdatedAt = s.now()
	if err := s.repos.Maintenances.Save(ctx, m); err != nil {
		return m, err
	}
	s.logger.Info("work order linked", zap.String("id", id), zap.String("om", order.Number))
	return m, nil
}

func headerFromOrder(h model.Header, order model.WorkOrder) model.Header {
	h.OM = order.Number
	h.Tag = order.Tag
	h.Description = order.Description
	if order.Type != "" {
		h.Type = order.Type
	}
	return h
}

func normalizeTag(tag, area string) (string, string) {
	normalized, parsedArea := parse.NormalizeTag(tag)
	if area == "" {
		area = parsedArea
	}
	return normalized, area
}
