package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/utils"
)

const notifyTimeout = 10 * time.Second

// SubmitRequest is a new punch. UserID 0 means the actor punches for themself.
type SubmitRequest struct {
	ActorID   uint
	ActorRole string
	UserID    uint
	PunchType string
	// PunchTime is optional; nil means now.
	PunchTime *time.Time
	Source    string
	Notes     string
}

// SubmitResult is returned for accepted and rejected submissions alike.
type SubmitResult struct {
	Punch      *models.Punch    `json:"punch,omitempty"`
	Validation ValidationResult `json:"validation"`
	Snapshot   *Snapshot        `json:"snapshot,omitempty"`
	Anomalies  []Anomaly        `json:"anomalies,omitempty"`
}

// EditRequest changes the time and/or type of an existing punch.
type EditRequest struct {
	ActorID   uint
	ActorRole string
	PunchID   string
	PunchTime *time.Time
	PunchType *string
	Reason    string
}

// DeleteRequest removes a punch.
type DeleteRequest struct {
	ActorID   uint
	ActorRole string
	PunchID   string
	Reason    string
}

// AutoCloseResult describes what an auto-close attempt did for one user.
type AutoCloseResult struct {
	Closed   bool          `json:"closed"`
	NotDue   bool          `json:"notDue"`
	Punch    *models.Punch `json:"punch,omitempty"`
	OpenedAt time.Time     `json:"openedAt,omitempty"`
}

// PunchService owns every write to the punch log.
type PunchService struct {
	punches    PunchStore
	users      UserDirectory
	tx         Transactor
	locker     UserLocker
	notifier   Notifier
	clock      Clock
	policy     Policy
	validator  *Validator
	aggregator *Aggregator
	detector   *Detector
	logger     *zap.Logger
}

// Submit validates and records a new punch under the user's lock. A
// rejected punch returns the validation result together with a ValidationError.
func (s *PunchService) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	userID := req.UserID
	if userID == 0 {
		userID = req.ActorID
	}
	if !canActOn(req.ActorID, req.ActorRole, userID) {
		return SubmitResult{}, &AuthorizationError{ActorID: req.ActorID, Action: "punch for another user"}
	}
	if !models.ValidPunchType(req.PunchType) {
		return SubmitResult{}, newValidationError(ErrInvalidPunchType)
	}
	source := req.Source
	if source == "" {
		source = models.SourceManual
		if req.ActorID != userID {
			source = models.SourceAdmin
		}
	}
	if !models.ValidSource(source) || source == models.SourceSystem {
		return SubmitResult{}, newValidationError(ErrInvalidSource, fmt.Sprintf("unknown punch source %q", source))
	}

	user, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	up, err := s.policy.ForUser(user)
	if err != nil {
		return SubmitResult{}, err
	}

	now := s.clock.Now()
	at := now
	if req.PunchTime != nil {
		if req.PunchTime.After(now) {
			return SubmitResult{}, newValidationError(ErrFutureManualPunch)
		}
		at = req.PunchTime.UTC()
	}

	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	punch, result, err := s.insertValidated(ctx, up, userID, req.PunchType, at, source, req.Notes)
	unlock()
	if err != nil {
		return SubmitResult{Validation: result}, err
	}

	if result.Warnings.Has(WarningNonWorkingDay) {
		s.bestEffort(ctx, "weekend_warning", userID, func(ctx context.Context) error {
			return s.notifier.SendWeekendWarning(ctx, *user, *punch)
		})
	}

	out := SubmitResult{Punch: punch, Validation: result}
	if snap, err := s.aggregator.GetDailySnapshot(ctx, user); err == nil {
		out.Snapshot = &snap
	} else {
		s.logger.Warn("snapshot after punch failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	if issues, err := s.detector.DetectIssues(ctx, userID, up.Timezone); err == nil {
		out.Anomalies = issues
	} else {
		s.logger.Warn("anomaly detection after punch failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	return out, nil
}

func (s *PunchService) insertValidated(ctx context.Context, up UserPolicy, userID uint, punchType string, at time.Time, source, notes string) (*models.Punch, ValidationResult, error) {
	start, end := DayBounds(up.Location, at)
	day, err := s.punches.FindPunchesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, ValidationResult{}, err
	}
	var before []models.Punch
	for _, p := range day {
		if p.PunchTime.Before(at) {
			before = append(before, p)
		}
	}
	last, err := s.punches.FindLastPunch(ctx, userID)
	if err != nil {
		return nil, ValidationResult{}, err
	}

	result := s.validator.Validate(ValidationInput{
		PunchType:  punchType,
		PunchTime:  at,
		DayPunches: before,
		LastPunch:  last,
	}, up)
	if !result.Valid {
		return nil, result, result.Err()
	}

	var parts []string
	if w, ok := result.Warnings.Find(WarningLateArrival); ok {
		parts = append(parts, LateNote(w.MinutesLate))
	}
	if clean := strings.TrimSpace(utils.SanitizeText(notes)); clean != "" {
		parts = append(parts, clean)
	}
	punch := &models.Punch{
		UserID:    userID,
		PunchType: punchType,
		PunchTime: at,
		Source:    source,
		Notes:     strings.Join(parts, "; "),
	}
	if err := s.punches.InsertPunch(ctx, punch); err != nil {
		return nil, result, err
	}
	return punch, result, nil
}

// EditPunch changes a punch's time and/or type. The first edit snapshots the
// original values; the update and its audit row share one transaction.
func (s *PunchService) EditPunch(ctx context.Context, req EditRequest) (*models.Punch, error) {
	reason := strings.TrimSpace(utils.SanitizeText(req.Reason))
	if reason == "" {
		return nil, newValidationError(ErrEditReasonRequired)
	}
	if req.PunchTime == nil && req.PunchType == nil {
		return nil, newValidationError(ErrNoChanges)
	}
	if req.PunchType != nil && !models.ValidPunchType(*req.PunchType) {
		return nil, newValidationError(ErrInvalidPunchType)
	}
	now := s.clock.Now()
	if req.PunchTime != nil && req.PunchTime.After(now) {
		return nil, newValidationError(ErrFutureManualPunch)
	}

	current, err := s.punches.FindPunchByID(ctx, req.PunchID)
	if err != nil {
		return nil, err
	}
	if !canActOn(req.ActorID, req.ActorRole, current.UserID) {
		return nil, &AuthorizationError{ActorID: req.ActorID, Action: "edit this punch"}
	}

	unlock, err := s.locker.Lock(ctx, current.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *models.Punch
	err = s.tx.WithinTransaction(ctx, func(store PunchStore, audit AuditSink) error {
		p, err := store.FindPunchByID(ctx, req.PunchID)
		if err != nil {
			return err
		}
		before := punchState(*p)

		edited := true
		actor := req.ActorID
		changes := models.PunchChanges{
			Edited:     &edited,
			EditedBy:   &actor,
			EditedAt:   &now,
			EditReason: &reason,
		}
		if p.OriginalPunchTime == nil {
			orig := p.PunchTime
			changes.OriginalPunchTime = &orig
		}
		if p.OriginalPunchType == nil {
			orig := p.PunchType
			changes.OriginalPunchType = &orig
		}
		if req.PunchTime != nil {
			t := req.PunchTime.UTC()
			changes.PunchTime = &t
		}
		if req.PunchType != nil {
			changes.PunchType = req.PunchType
		}
		if err := store.UpdatePunchFields(ctx, p.ID, changes); err != nil {
			return err
		}

		if updated, err = store.FindPunchByID(ctx, p.ID); err != nil {
			return err
		}
		return audit.Record(ctx, models.AuditLog{
			Action:        models.AuditPunchEdit,
			PerformedBy:   req.ActorID,
			TargetUser:    p.UserID,
			PunchID:       p.ID,
			PreviousState: before,
			NewState:      punchState(*updated),
			Description:   reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("punch edited", zap.String("punch_id", req.PunchID), zap.Uint("actor_id", req.ActorID))
	return updated, nil
}

// DeletePunch removes a punch after recording its full state in the audit log.
func (s *PunchService) DeletePunch(ctx context.Context, req DeleteRequest) error {
	current, err := s.punches.FindPunchByID(ctx, req.PunchID)
	if err != nil {
		return err
	}
	if !canActOn(req.ActorID, req.ActorRole, current.UserID) {
		return &AuthorizationError{ActorID: req.ActorID, Action: "delete this punch"}
	}

	unlock, err := s.locker.Lock(ctx, current.UserID)
	if err != nil {
		return err
	}
	defer unlock()

	description := strings.TrimSpace(utils.SanitizeText(req.Reason))
	if description == "" {
		description = "punch deleted"
	}
	err = s.tx.WithinTransaction(ctx, func(store PunchStore, audit AuditSink) error {
		p, err := store.FindPunchByID(ctx, req.PunchID)
		if err != nil {
			return err
		}
		if err := audit.Record(ctx, models.AuditLog{
			Action:        models.AuditPunchDelete,
			PerformedBy:   req.ActorID,
			TargetUser:    p.UserID,
			PunchID:       p.ID,
			PreviousState: punchState(*p),
			Description:   description,
		}); err != nil {
			return err
		}
		return store.DeletePunch(ctx, p.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("punch deleted", zap.String("punch_id", req.PunchID), zap.Uint("actor_id", req.ActorID))
	return nil
}

// AutoCloseUser writes a system OUT for the user's open session. A session
// opened today is closed once the user's local time has reached the
// auto-close trigger; force skips that check. A session left open on an
// earlier local day is always due, so a tick that misses the trigger window
// still closes it after midnight. The OUT lands one minute before the end of
// the IN's local day, or at now when that is still in the future.
func (s *PunchService) AutoCloseUser(ctx context.Context, user *models.User, force bool) (AutoCloseResult, error) {
	up, err := s.policy.ForUser(user)
	if err != nil {
		return AutoCloseResult{}, err
	}
	now := s.clock.Now()

	unlock, err := s.locker.Lock(ctx, user.ID)
	if err != nil {
		return AutoCloseResult{}, err
	}
	last, err := s.punches.FindLastPunch(ctx, user.ID)
	if err != nil {
		unlock()
		return AutoCloseResult{}, err
	}
	if last == nil || !last.IsIn() {
		unlock()
		return AutoCloseResult{}, nil
	}
	open := *last

	earlierDay := LocalDate(open.PunchTime, up.Location) < LocalDate(now, up.Location)
	if !force && !earlierDay && minutesOfDay(now.In(up.Location)) < float64(s.policy.AutoCloseAt) {
		unlock()
		return AutoCloseResult{NotDue: true}, nil
	}

	_, end := DayBounds(up.Location, open.PunchTime)
	outAt := end.Add(-time.Minute)
	if outAt.After(now) {
		outAt = now
	}
	if !outAt.After(open.PunchTime) {
		outAt = open.PunchTime.Add(time.Second)
	}
	out := &models.Punch{
		UserID:    user.ID,
		PunchType: models.PunchOut,
		PunchTime: outAt,
		Source:    models.SourceSystem,
		Notes:     fmt.Sprintf("Auto-closed by system at %s (missed punch out)", outAt.In(up.Location).Format("15:04")),
	}
	err = s.tx.WithinTransaction(ctx, func(store PunchStore, audit AuditSink) error {
		if err := store.InsertPunch(ctx, out); err != nil {
			return err
		}
		return audit.Record(ctx, models.AuditLog{
			Action:        models.AuditPunchAutoClose,
			TargetUser:    user.ID,
			PunchID:       out.ID,
			PreviousState: punchState(open),
			NewState:      punchState(*out),
			Description:   "open session closed at end of day",
		})
	})
	unlock()
	if err != nil {
		return AutoCloseResult{}, err
	}

	s.bestEffort(ctx, "missed_punch_out", user.ID, func(ctx context.Context) error {
		return s.notifier.SendMissedPunchOutAlert(ctx, *user, open.PunchTime, outAt)
	})
	return AutoCloseResult{Closed: true, Punch: out, OpenedAt: open.PunchTime}, nil
}

// bestEffort runs a notification and only logs its failure.
func (s *PunchService) bestEffort(ctx context.Context, what string, userID uint, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notification panicked", zap.String("notification", what), zap.Uint("user_id", userID), zap.Any("panic", r))
		}
	}()
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := fn(nctx); err != nil {
		s.logger.Warn("notification failed", zap.String("notification", what), zap.Uint("user_id", userID), zap.Error(err))
	}
}

func canActOn(actorID uint, role string, ownerID uint) bool {
	return actorID == ownerID || strings.EqualFold(role, models.RoleAdmin)
}

func punchState(p models.Punch) string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

func appendNote(existing, note string) string {
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + "; " + note
}
