package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/campus-rewards-api/internal/models"
	"github.com/noah-isme/campus-rewards-api/internal/repository"
	"github.com/noah-isme/campus-rewards-api/pkg/payment"
	"github.com/noah-isme/campus-rewards-api/pkg/storage"
)

// memoryDB mimics the guarded SQL of the repositories over maps under one mutex.
type memoryDB struct {
	mu          sync.Mutex
	tasks       map[string]*models.Task
	students    map[string]*models.Student
	assignments map[string]*models.Assignment
	completed   map[string]*models.CompletedAssignment
	rewards     map[string]*models.Reward
	claims      map[string]*models.RewardClaim
	payments    map[string]*models.PaymentAttempt
	beginErr    error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		tasks:       map[string]*models.Task{},
		students:    map[string]*models.Student{},
		assignments: map[string]*models.Assignment{},
		completed:   map[string]*models.CompletedAssignment{},
		rewards:     map[string]*models.Reward{},
		claims:      map[string]*models.RewardClaim{},
		payments:    map[string]*models.PaymentAttempt{},
	}
}

func pairKey(studentID, subjectID string) string {
	return studentID + "|" + subjectID
}

func (db *memoryDB) addTask(task models.Task) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if task.SlotsLeft == 0 {
		task.SlotsLeft = task.Slot
	}
	db.tasks[task.ID] = &task
}

func (db *memoryDB) addStudent(student models.Student) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.students[student.ID] = &student
}

func (db *memoryDB) addReward(reward models.Reward) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if reward.SlotsLeft == 0 {
		reward.SlotsLeft = reward.Slot
	}
	db.rewards[reward.ID] = &reward
}

func (db *memoryDB) slotsLeft(taskID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tasks[taskID].SlotsLeft
}

func (db *memoryDB) rewardSlotsLeft(rewardID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rewards[rewardID].SlotsLeft
}

func (db *memoryDB) assignment(studentID, taskID string) (models.Assignment, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	a, ok := db.assignments[pairKey(studentID, taskID)]
	if !ok {
		return models.Assignment{}, false
	}
	return *a, true
}

func (db *memoryDB) completedCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.completed)
}

func (db *memoryDB) assignmentCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.assignments)
}

func (db *memoryDB) claim(studentID, rewardID string) (models.RewardClaim, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.claims[pairKey(studentID, rewardID)]
	if !ok {
		return models.RewardClaim{}, false
	}
	return *c, true
}

func (db *memoryDB) payment(key string) (models.PaymentAttempt, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.payments[key]
	if !ok {
		return models.PaymentAttempt{}, false
	}
	return *p, true
}

type memoryTasks struct{ db *memoryDB }

func (r memoryTasks) Create(ctx context.Context, task *models.Task) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.SlotsLeft = task.Slot
	copied := *task
	r.db.tasks[task.ID] = &copied
	return nil
}

func (r memoryTasks) FindByID(ctx context.Context, id string) (*models.Task, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	task, ok := r.db.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *task
	return &copied, nil
}

func (r memoryTasks) ListEligible(ctx context.Context, branch, studentID string) ([]models.Task, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Task
	for _, task := range r.db.tasks {
		if task.SlotsLeft < 1 {
			continue
		}
		if _, ok := r.db.assignments[pairKey(studentID, task.ID)]; ok {
			continue
		}
		if _, ok := r.db.completed[pairKey(studentID, task.ID)]; ok {
			continue
		}
		for _, b := range task.Branches {
			if b == branch {
				out = append(out, *task)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryTasks) ListByFaculty(ctx context.Context, facultyID string) ([]models.Task, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Task
	for _, task := range r.db.tasks {
		if task.FacultyID == facultyID {
			out = append(out, *task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryStudents struct{ db *memoryDB }

func (r memoryStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	student, ok := r.db.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

type memoryAssignments struct{ db *memoryDB }

func (r memoryAssignments) Accept(ctx context.Context, assignment *models.Assignment) (models.SlotClaim, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := pairKey(assignment.StudentID, assignment.TaskID)
	if _, ok := r.db.completed[key]; ok {
		return models.SlotClaim{}, repository.ErrAlreadyCompleted
	}
	if _, ok := r.db.assignments[key]; ok {
		return models.SlotClaim{}, repository.ErrDuplicate
	}
	task, ok := r.db.tasks[assignment.TaskID]
	if !ok || task.SlotsLeft < 1 {
		return models.SlotClaim{}, repository.ErrSlotsExhausted
	}
	task.SlotsLeft--
	claim := models.SlotClaim{Slot: task.Slot, SlotsLeft: task.SlotsLeft}
	now := time.Now().UTC()
	assignment.SlotNumber = claim.Ordinal()
	assignment.AcceptedAt = now
	assignment.UpdatedAt = now
	copied := *assignment
	r.db.assignments[key] = &copied
	return claim, nil
}

func (r memoryAssignments) Find(ctx context.Context, studentID, taskID string) (*models.Assignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.assignments[pairKey(studentID, taskID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (r memoryAssignments) FindCompleted(ctx context.Context, studentID, taskID string) (*models.CompletedAssignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.completed[pairKey(studentID, taskID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (r memoryAssignments) MarkSubmitted(ctx context.Context, studentID, taskID, proofRef string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.assignments[pairKey(studentID, taskID)]
	if !ok || a.IsSubmitted || a.IsRejected {
		return repository.ErrStateChanged
	}
	a.IsSubmitted = true
	a.ProofRef = &proofRef
	return nil
}

func (r memoryAssignments) Resubmit(ctx context.Context, studentID, taskID, proofRef string) (*string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.assignments[pairKey(studentID, taskID)]
	if !ok || !a.IsRejected {
		return nil, repository.ErrStateChanged
	}
	previous := a.ProofRef
	a.IsRejected = false
	a.IsSubmitted = true
	a.ProofRef = &proofRef
	return previous, nil
}

func (r memoryAssignments) Reject(ctx context.Context, facultyID, studentID, taskID, reason string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.assignments[pairKey(studentID, taskID)]
	if !ok || a.FacultyID != facultyID || !a.IsSubmitted || a.IsRejected {
		return repository.ErrStateChanged
	}
	a.IsSubmitted = false
	a.IsRejected = true
	a.RejectionReason = &reason
	return nil
}

func (r memoryAssignments) Archive(ctx context.Context, completed *models.CompletedAssignment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := pairKey(completed.StudentID, completed.TaskID)
	if _, ok := r.db.completed[key]; ok {
		return repository.ErrAlreadyCompleted
	}
	if _, ok := r.db.assignments[key]; !ok {
		return repository.ErrStateChanged
	}
	if completed.ID == "" {
		completed.ID = uuid.NewString()
	}
	copied := *completed
	r.db.completed[key] = &copied
	delete(r.db.assignments, key)
	return nil
}

type memoryRewards struct{ db *memoryDB }

func (r memoryRewards) Create(ctx context.Context, reward *models.Reward) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if reward.ID == "" {
		reward.ID = uuid.NewString()
	}
	reward.SlotsLeft = reward.Slot
	copied := *reward
	r.db.rewards[reward.ID] = &copied
	return nil
}

func (r memoryRewards) FindByID(ctx context.Context, id string) (*models.Reward, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	reward, ok := r.db.rewards[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *reward
	return &copied, nil
}

func (r memoryRewards) List(ctx context.Context) ([]models.Reward, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.Reward, 0, len(r.db.rewards))
	for _, reward := range r.db.rewards {
		out = append(out, *reward)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryRewards) Reserve(ctx context.Context, claim *models.RewardClaim) (models.SlotClaim, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	reward, ok := r.db.rewards[claim.RewardID]
	if !ok || reward.SlotsLeft < 1 {
		return models.SlotClaim{}, repository.ErrSlotsExhausted
	}
	key := pairKey(claim.StudentID, claim.RewardID)
	if _, ok := r.db.claims[key]; ok {
		return models.SlotClaim{}, repository.ErrDuplicate
	}
	reward.SlotsLeft--
	slot := models.SlotClaim{Slot: reward.Slot, SlotsLeft: reward.SlotsLeft}
	claim.ID = uuid.NewString()
	claim.SlotNumber = slot.Ordinal()
	claim.Status = models.ClaimStatusPending
	claim.ClaimedAt = time.Now().UTC()
	copied := *claim
	r.db.claims[key] = &copied
	return slot, nil
}

func (r memoryRewards) FindClaim(ctx context.Context, studentID, rewardID string) (*models.RewardClaim, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.claims[pairKey(studentID, rewardID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (r memoryRewards) claimByID(id string) (*models.RewardClaim, string) {
	for key, c := range r.db.claims {
		if c.ID == id {
			return c, key
		}
	}
	return nil, ""
}

func (r memoryRewards) ConfirmClaim(ctx context.Context, claimID, transactionRef string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, _ := r.claimByID(claimID)
	if c == nil || c.Status != models.ClaimStatusPending {
		return repository.ErrStateChanged
	}
	c.Status = models.ClaimStatusClaimed
	c.TransactionRef = &transactionRef
	return nil
}

func (r memoryRewards) ReleaseClaim(ctx context.Context, claimID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, key := r.claimByID(claimID)
	if c == nil || c.Status != models.ClaimStatusPending {
		return repository.ErrStateChanged
	}
	delete(r.db.claims, key)
	if reward, ok := r.db.rewards[c.RewardID]; ok && reward.SlotsLeft < reward.Slot {
		reward.SlotsLeft++
	}
	return nil
}

func (r memoryRewards) ListClaimsByStudent(ctx context.Context, studentID string) ([]models.RewardClaimDetail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.RewardClaimDetail
	for _, c := range r.db.claims {
		if c.StudentID != studentID {
			continue
		}
		detail := models.RewardClaimDetail{RewardClaim: *c}
		if reward, ok := r.db.rewards[c.RewardID]; ok {
			detail.RewardName = reward.Name
		}
		out = append(out, detail)
	}
	return out, nil
}

type memoryPayments struct{ db *memoryDB }

func (r memoryPayments) Begin(ctx context.Context, attempt *models.PaymentAttempt) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.beginErr != nil {
		return r.db.beginErr
	}
	now := time.Now().UTC()
	if existing, ok := r.db.payments[attempt.IdempotencyKey]; ok {
		if existing.Status != models.PaymentStatusFailed {
			return sql.ErrNoRows
		}
		existing.Status = models.PaymentStatusPending
		existing.Attempts++
		existing.Amount = attempt.Amount
		existing.Memo = attempt.Memo
		existing.FailureReason = nil
		existing.SettledAt = nil
		existing.UpdatedAt = now
		*attempt = *existing
		return nil
	}
	attempt.ID = uuid.NewString()
	attempt.Status = models.PaymentStatusPending
	attempt.Attempts = 1
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	copied := *attempt
	r.db.payments[attempt.IdempotencyKey] = &copied
	return nil
}

func (r memoryPayments) FindByKey(ctx context.Context, key string) (*models.PaymentAttempt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (r memoryPayments) byID(id string) *models.PaymentAttempt {
	for _, p := range r.db.payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r memoryPayments) setStatus(id string, status models.PaymentStatus, ref, reason *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p := r.byID(id)
	if p == nil || !p.Outstanding() {
		return repository.ErrStateChanged
	}
	p.Status = status
	if ref != nil {
		p.TransactionRef = ref
	}
	p.FailureReason = reason
	return nil
}

func (r memoryPayments) MarkSucceeded(ctx context.Context, id, transactionRef string) error {
	return r.setStatus(id, models.PaymentStatusSucceeded, &transactionRef, nil)
}

func (r memoryPayments) MarkFailed(ctx context.Context, id, reason string) error {
	return r.setStatus(id, models.PaymentStatusFailed, nil, &reason)
}

func (r memoryPayments) MarkUnknown(ctx context.Context, id, reason string) error {
	return r.setStatus(id, models.PaymentStatusUnknown, nil, &reason)
}

func (r memoryPayments) MarkSettled(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p := r.byID(id)
	if p == nil {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	p.SettledAt = &now
	return nil
}

func (r memoryPayments) ListUnsettled(ctx context.Context, staleBefore time.Time, limit int) ([]models.PaymentAttempt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.PaymentAttempt
	for _, p := range r.db.payments {
		if p.SettledAt != nil || p.UpdatedAt.After(staleBefore) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdempotencyKey < out[j].IdempotencyKey })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// gatewayStub answers transfers from a scripted outcome and records every call.
type gatewayStub struct {
	mu        sync.Mutex
	transfers []payment.TransferRequest
	next      []error
	statuses  map[string]payment.TransferResult
	statusErr error
	block     chan struct{}
}

func (g *gatewayStub) Transfer(ctx context.Context, req payment.TransferRequest) (string, error) {
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			g.record(req)
			return "", fmt.Errorf("%w: %v", payment.ErrStatusUnknown, ctx.Err())
		}
	}
	n := g.record(req)
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.next) > 0 {
		err := g.next[0]
		g.next = g.next[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("tx-%d", n), nil
}

func (g *gatewayStub) record(req payment.TransferRequest) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transfers = append(g.transfers, req)
	return len(g.transfers)
}

func (g *gatewayStub) Status(ctx context.Context, key string) (payment.TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return payment.TransferResult{}, g.statusErr
	}
	result, ok := g.statuses[key]
	if !ok {
		return payment.TransferResult{Status: payment.StatusPending}, nil
	}
	return result, nil
}

func (g *gatewayStub) calls() []payment.TransferRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.TransferRequest(nil), g.transfers...)
}

func testSigner() *storage.SignedURLSigner {
	return storage.NewSignedURLSigner("proof-secret", time.Minute)
}

type fixedPolicy struct {
	value decimal.Decimal
	err   error
}

func (p fixedPolicy) BaseMultiplier(ctx context.Context) (decimal.Decimal, error) {
	return p.value, p.err
}

// campus wires the services against one memoryDB the way main does against Postgres.
type campus struct {
	db          *memoryDB
	gateway     *gatewayStub
	audit       *auditRepoStub
	storage     *memoryStorage
	payouts     *PayoutService
	tasks       *TaskService
	assignments *AssignmentService
	approvals   *ApprovalService
	redemptions *RedemptionService
	proofs      *ProofService
	reconciler  *ReconcilerService
}

func newCampus() *campus {
	db := newMemoryDB()
	gateway := &gatewayStub{}
	audit := &auditRepoStub{}
	store := newMemoryStorage()
	calculator := NewRewardCalculator(fixedPolicy{value: decimal.NewFromInt(1)}, 100)
	locker := NewKeyedLocker()

	proofs := NewProofService(store, testSigner(), memoryAssignments{db}, nil, ProofServiceConfig{})
	payouts := NewPayoutService(memoryPayments{db}, gateway, nil, nil, time.Second)
	c := &campus{
		db:          db,
		gateway:     gateway,
		audit:       audit,
		storage:     store,
		payouts:     payouts,
		proofs:      proofs,
		tasks:       NewTaskService(memoryTasks{db}, memoryStudents{db}, calculator, audit, nil, nil),
		assignments: NewAssignmentService(memoryAssignments{db}, memoryTasks{db}, calculator, proofs, audit, nil, nil, nil),
		approvals:   NewApprovalService(memoryAssignments{db}, memoryStudents{db}, payouts, locker, audit, nil, nil, nil, "treasury"),
		redemptions: NewRedemptionService(memoryRewards{db}, memoryStudents{db}, payouts, locker, audit, nil, nil, nil, "admin-wallet"),
		reconciler:  NewReconcilerService(memoryPayments{db}, gateway, nil, nil, ReconcilerConfig{StaleAfter: time.Nanosecond}),
	}
	c.reconciler.Register(models.PaymentPurposeTask, c.approvals.SettleTaskPayment)
	c.reconciler.Register(models.PaymentPurposeReward, c.redemptions.SettleRewardPayment)
	return c
}
