package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/domain/constraint"
	"github.com/pratik-mahalle/tocguard/internal/domain/drum"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
)

// MockConstraintRepository is a mock implementation of constraint.Repository
type MockConstraintRepository struct {
	mu          sync.Mutex
	Constraints map[int64]*constraint.Constraint
	NextID      int64
	CreateError error
	GetError    error
}

func NewMockConstraintRepository() *MockConstraintRepository {
	return &MockConstraintRepository{
		Constraints: make(map[int64]*constraint.Constraint),
		NextID:      1,
	}
}

func (m *MockConstraintRepository) Create(ctx context.Context, c *constraint.Constraint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	c.ID = m.NextID
	m.NextID++
	if c.Version == 0 {
		c.Version = 1
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	copied := *c
	m.Constraints[c.ID] = &copied
	return nil
}

func (m *MockConstraintRepository) GetByID(ctx context.Context, id int64) (*constraint.Constraint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	c, ok := m.Constraints[id]
	if !ok {
		return nil, errors.NotFound("Constraint")
	}
	copied := *c
	return &copied, nil
}

func (m *MockConstraintRepository) Update(ctx context.Context, c *constraint.Constraint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Constraints[c.ID]; !ok {
		return errors.NotFound("Constraint")
	}
	c.UpdatedAt = time.Now()
	copied := *c
	m.Constraints[c.ID] = &copied
	return nil
}

func (m *MockConstraintRepository) List(ctx context.Context, filter constraint.Filter) ([]*constraint.Constraint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*constraint.Constraint
	for _, c := range m.sorted() {
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.Scope != "" && string(c.Scope) != filter.Scope {
			continue
		}
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		copied := *c
		result = append(result, &copied)
	}
	return result, nil
}

func (m *MockConstraintRepository) GetApplicable(ctx context.Context, entityType string, entityID int64) ([]*constraint.Constraint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	var result []*constraint.Constraint
	for _, c := range m.sorted() {
		if !c.IsActive {
			continue
		}
		global := c.Scope == constraint.ScopeGlobal
		scoped := string(c.Scope) == entityType && (c.ScopeEntityID == nil || *c.ScopeEntityID == entityID)
		if global || scoped {
			copied := *c
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockConstraintRepository) sorted() []*constraint.Constraint {
	out := make([]*constraint.Constraint, 0, len(m.Constraints))
	for _, c := range m.Constraints {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MockViolationRepository is a mock implementation of constraint.ViolationRepository
type MockViolationRepository struct {
	mu          sync.Mutex
	Violations  map[int64]*constraint.Violation
	NextID      int64
	UpsertError error
	UpsertCalls int
}

func NewMockViolationRepository() *MockViolationRepository {
	return &MockViolationRepository{
		Violations: make(map[int64]*constraint.Violation),
		NextID:     1,
	}
}

func (m *MockViolationRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *MockViolationRepository) UpsertOpen(ctx context.Context, v *constraint.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertError != nil {
		return m.UpsertError
	}

	now := time.Now()
	v.Status = constraint.StatusOpen
	v.UpdatedAt = now
	for _, existing := range m.Violations {
		if existing.Status == constraint.StatusOpen && existing.ConstraintID == v.ConstraintID &&
			existing.EntityType == v.EntityType && existing.EntityID == v.EntityID {
			v.ID = existing.ID
			v.DetectedAt = existing.DetectedAt
			copied := *v
			m.Violations[v.ID] = &copied
			return nil
		}
	}

	v.ID = m.NextID
	m.NextID++
	if v.DetectedAt.IsZero() {
		v.DetectedAt = now
	}
	copied := *v
	m.Violations[v.ID] = &copied
	return nil
}

func (m *MockViolationRepository) GetByID(ctx context.Context, id int64) (*constraint.Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Violations[id]
	if !ok {
		return nil, errors.NotFound("Violation")
	}
	copied := *v
	return &copied, nil
}

func (m *MockViolationRepository) Transition(ctx context.Context, id int64, t constraint.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Violations[id]
	if !ok {
		return errors.NotFound("Violation")
	}
	if v.Status != constraint.StatusOpen {
		return errors.Conflict(fmt.Sprintf("violation %d is already %s", id, v.Status))
	}

	at := t.At
	note, actor := t.Note, t.Actor
	v.Status = t.Status
	v.UpdatedAt = at
	switch t.Status {
	case constraint.StatusResolved:
		v.Resolution, v.ResolvedBy, v.ResolvedAt = &note, &actor, &at
	case constraint.StatusWaived:
		v.WaiverReason, v.WaivedBy, v.WaivedAt = &note, &actor, &at
	}
	return nil
}

func (m *MockViolationRepository) List(ctx context.Context, filter constraint.ViolationFilter) ([]*constraint.Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*constraint.Violation
	for _, v := range m.Violations {
		if filter.ConstraintID != 0 && v.ConstraintID != filter.ConstraintID {
			continue
		}
		if filter.EntityType != "" && v.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != 0 && v.EntityID != filter.EntityID {
			continue
		}
		if filter.Severity != "" && v.Severity != filter.Severity {
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		copied := *v
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *MockViolationRepository) CountBySeverityAndStatus(ctx context.Context) (map[string]map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]map[string]int)
	for _, v := range m.Violations {
		if counts[v.Severity] == nil {
			counts[v.Severity] = make(map[string]int)
		}
		counts[v.Severity][v.Status]++
	}
	return counts, nil
}

// MockExceptionRepository is a mock implementation of constraint.ExceptionRepository
type MockExceptionRepository struct {
	mu         sync.Mutex
	Exceptions map[int64]*constraint.Exception
	NextID     int64
}

func NewMockExceptionRepository() *MockExceptionRepository {
	return &MockExceptionRepository{
		Exceptions: make(map[int64]*constraint.Exception),
		NextID:     1,
	}
}

func (m *MockExceptionRepository) Create(ctx context.Context, e *constraint.Exception) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.NextID
	m.NextID++
	e.CreatedAt = time.Now()
	if e.ValidFrom.IsZero() {
		e.ValidFrom = e.CreatedAt
	}
	copied := *e
	m.Exceptions[e.ID] = &copied
	return nil
}

func (m *MockExceptionRepository) Deactivate(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Exceptions[id]
	if !ok {
		return errors.NotFound("Constraint exception")
	}
	e.IsActive = false
	return nil
}

func (m *MockExceptionRepository) ListActive(ctx context.Context, entityType string, entityID int64, at time.Time) ([]*constraint.Exception, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*constraint.Exception
	for _, e := range m.Exceptions {
		if e.Covers(e.ConstraintID, entityType, entityID, at) {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockExceptionRepository) List(ctx context.Context, constraintID int64) ([]*constraint.Exception, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*constraint.Exception
	for _, e := range m.Exceptions {
		if e.ConstraintID == constraintID {
			copied := *e
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MockBufferRepository is a mock implementation of buffer.Repository
type MockBufferRepository struct {
	mu           sync.Mutex
	Definitions  map[int64]*buffer.Definition
	Consumptions []*buffer.Consumption
	History      []*buffer.HistoryEvent
	Policies     map[int64]*buffer.Policy
	NextID       int64
	GetDefCalls  int
	LockCalls    int
	HistoryError error
	// AfterGetDefinition, when set, runs after each definition read returns
	// from the store
	AfterGetDefinition func(d *buffer.Definition)
}

func NewMockBufferRepository() *MockBufferRepository {
	return &MockBufferRepository{
		Definitions: make(map[int64]*buffer.Definition),
		Policies:    make(map[int64]*buffer.Policy),
		NextID:      1,
	}
}

func (m *MockBufferRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	consumptions, history := len(m.Consumptions), len(m.History)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.Consumptions = m.Consumptions[:consumptions]
		m.History = m.History[:history]
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MockBufferRepository) nextID() int64 {
	id := m.NextID
	m.NextID++
	return id
}

func (m *MockBufferRepository) CreateDefinition(ctx context.Context, d *buffer.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.nextID()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	copied := *d
	m.Definitions[d.ID] = &copied
	return nil
}

func (m *MockBufferRepository) GetDefinition(ctx context.Context, id int64) (*buffer.Definition, error) {
	m.mu.Lock()
	m.GetDefCalls++
	d, ok := m.Definitions[id]
	if !ok {
		m.mu.Unlock()
		return nil, errors.NotFound("Buffer definition")
	}
	copied := *d
	hook := m.AfterGetDefinition
	m.mu.Unlock()

	if hook != nil {
		hook(&copied)
	}
	return &copied, nil
}

func (m *MockBufferRepository) UpdateDefinition(ctx context.Context, d *buffer.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Definitions[d.ID]; !ok {
		return errors.NotFound("Buffer definition")
	}
	d.UpdatedAt = time.Now()
	copied := *d
	m.Definitions[d.ID] = &copied
	return nil
}

func (m *MockBufferRepository) ListDefinitions(ctx context.Context, filter buffer.Filter) ([]*buffer.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*buffer.Definition
	for _, d := range m.Definitions {
		if filter.BufferType != "" && d.BufferType != filter.BufferType {
			continue
		}
		if filter.BufferCategory != "" && d.BufferCategory != filter.BufferCategory {
			continue
		}
		if filter.ActiveOnly && !d.IsActive {
			continue
		}
		copied := *d
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockBufferRepository) LockDefinition(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LockCalls++
	return nil
}

func (m *MockBufferRepository) GetLatestConsumption(ctx context.Context, bufferID int64) (*buffer.Consumption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Consumptions) - 1; i >= 0; i-- {
		if m.Consumptions[i].BufferDefinitionID == bufferID {
			copied := *m.Consumptions[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockBufferRepository) CreateConsumption(ctx context.Context, c *buffer.Consumption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID()
	if c.RecordedAt.IsZero() {
		c.RecordedAt = time.Now()
	}
	copied := *c
	m.Consumptions = append(m.Consumptions, &copied)
	return nil
}

func (m *MockBufferRepository) CreateHistoryEvent(ctx context.Context, e *buffer.HistoryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HistoryError != nil {
		return m.HistoryError
	}
	e.ID = m.nextID()
	copied := *e
	m.History = append(m.History, &copied)
	return nil
}

func (m *MockBufferRepository) ListConsumptions(ctx context.Context, bufferID int64, limit int) ([]*buffer.Consumption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*buffer.Consumption
	for i := len(m.Consumptions) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		if m.Consumptions[i].BufferDefinitionID == bufferID {
			copied := *m.Consumptions[i]
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockBufferRepository) ListHistory(ctx context.Context, bufferID int64, limit int) ([]*buffer.HistoryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*buffer.HistoryEvent
	for i := len(m.History) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		if m.History[i].BufferDefinitionID == bufferID {
			copied := *m.History[i]
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockBufferRepository) ListLatestObservations(ctx context.Context) ([]*buffer.LatestObservation, error) {
	defs, _ := m.ListDefinitions(ctx, buffer.Filter{ActiveOnly: true})
	var result []*buffer.LatestObservation
	for _, d := range defs {
		latest, _ := m.GetLatestConsumption(ctx, d.ID)
		policy, _ := m.GetPolicy(ctx, d.ID)
		result = append(result, &buffer.LatestObservation{Definition: d, Consumption: latest, Policy: policy})
	}
	return result, nil
}

func (m *MockBufferRepository) GetPolicy(ctx context.Context, bufferID int64) (*buffer.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Policies[bufferID]
	if !ok || !p.IsActive {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *MockBufferRepository) UpsertPolicy(ctx context.Context, p *buffer.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.Policies[p.BufferDefinitionID]; ok {
		p.ID = existing.ID
	} else {
		p.ID = m.nextID()
	}
	p.UpdatedAt = time.Now()
	copied := *p
	m.Policies[p.BufferDefinitionID] = &copied
	return nil
}

// MockDefinitionCache is an in-memory buffer.DefinitionCache that counts hits
type MockDefinitionCache struct {
	mu          sync.Mutex
	Entries     map[int64]*buffer.Definition
	Hits        int
	Invalidated []int64
}

func NewMockDefinitionCache() *MockDefinitionCache {
	return &MockDefinitionCache{Entries: make(map[int64]*buffer.Definition)}
}

func (m *MockDefinitionCache) Get(ctx context.Context, id int64) (*buffer.Definition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.Entries[id]
	if !ok {
		return nil, false
	}
	m.Hits++
	copied := *d
	return &copied, true
}

func (m *MockDefinitionCache) Set(ctx context.Context, d *buffer.Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *d
	m.Entries[d.ID] = &copied
}

func (m *MockDefinitionCache) Invalidate(ctx context.Context, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Entries, id)
	m.Invalidated = append(m.Invalidated, id)
}

// MockDrumRepository is a mock implementation of drum.Repository
type MockDrumRepository struct {
	mu          sync.Mutex
	Resources   map[int64]*drum.Resource
	Operations  []*drum.Operation
	History     []*drum.AnalysisHistory
	NextID      int64
	SetFlagErr  error
	FlagChanges []drum.Designation
}

func NewMockDrumRepository() *MockDrumRepository {
	return &MockDrumRepository{
		Resources: make(map[int64]*drum.Resource),
		NextID:    1,
	}
}

// WithinTx restores resources and history when fn fails
func (m *MockDrumRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snapshot := make(map[int64]drum.Resource, len(m.Resources))
	for id, r := range m.Resources {
		snapshot[id] = *r
	}
	history := len(m.History)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		for id, r := range snapshot {
			restored := r
			m.Resources[id] = &restored
		}
		m.History = m.History[:history]
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MockDrumRepository) CreateResource(ctx context.Context, r *drum.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.NextID
	m.NextID++
	copied := *r
	m.Resources[r.ID] = &copied
	return nil
}

func (m *MockDrumRepository) RecordOperation(ctx context.Context, op *drum.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Resources[op.ResourceID]; !ok {
		return errors.NotFound("Resource")
	}
	op.ID = m.NextID
	m.NextID++
	copied := *op
	m.Operations = append(m.Operations, &copied)
	return nil
}

// AddUtilization records count operations of the given duration on a resource
func (m *MockDrumRepository) AddUtilization(resourceID int64, count int, minutes float64) {
	for i := 0; i < count; i++ {
		_ = m.RecordOperation(context.Background(), &drum.Operation{ResourceID: resourceID, DurationMinutes: minutes})
	}
}

func (m *MockDrumRepository) GetResource(ctx context.Context, id int64) (*drum.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Resources[id]
	if !ok {
		return nil, errors.NotFound("Resource")
	}
	copied := *r
	return &copied, nil
}

func (m *MockDrumRepository) ListDrums(ctx context.Context) ([]*drum.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*drum.Resource
	for _, r := range m.Resources {
		if r.IsDrum {
			copied := *r
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockDrumRepository) ListUtilization(ctx context.Context) ([]*drum.Utilization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := make(map[int64]*drum.Utilization)
	for _, r := range m.Resources {
		byID[r.ID] = &drum.Utilization{ResourceID: r.ID, ResourceName: r.Name, IsDrum: r.IsDrum}
	}
	for _, op := range m.Operations {
		u := byID[op.ResourceID]
		u.OperationCount++
		u.TotalDuration += op.DurationMinutes
	}

	result := make([]*drum.Utilization, 0, len(byID))
	for _, u := range byID {
		if u.OperationCount > 0 {
			u.AvgDuration = u.TotalDuration / float64(u.OperationCount)
		}
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ResourceID < result[j].ResourceID })
	return result, nil
}

func (m *MockDrumRepository) SetDrumFlag(ctx context.Context, d drum.Designation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetFlagErr != nil {
		return m.SetFlagErr
	}
	r, ok := m.Resources[d.ResourceID]
	if !ok {
		return errors.NotFound("Resource")
	}
	at, reason, method := d.At, d.Reason, d.Method
	r.IsDrum = d.IsDrum
	if d.IsDrum {
		drumType := d.DrumType
		r.DrumType = &drumType
	} else {
		r.DrumType = nil
	}
	r.DrumDesignationDate = &at
	r.DrumDesignationReason = &reason
	r.DrumDesignationMethod = &method
	m.FlagChanges = append(m.FlagChanges, d)
	return nil
}

func (m *MockDrumRepository) CreateAnalysisHistory(ctx context.Context, h *drum.AnalysisHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = m.NextID
	m.NextID++
	copied := *h
	m.History = append(m.History, &copied)
	return nil
}

func (m *MockDrumRepository) ListAnalysisHistory(ctx context.Context, limit int) ([]*drum.AnalysisHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*drum.AnalysisHistory
	for i := len(m.History) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		copied := *m.History[i]
		result = append(result, &copied)
	}
	return result, nil
}
