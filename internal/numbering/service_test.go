package numbering

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/vetdesk/internal/shared"
)

type seqKey struct {
	tenant uuid.UUID
	kind   Kind
}

type memoryRepo struct {
	mu   sync.Mutex
	rows map[seqKey]*Sequence
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[seqKey]*Sequence)}
}

func (m *memoryRepo) NextSequence(_ context.Context, tenantID uuid.UUID, kind Kind, defaultPattern string) (int64, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := seqKey{tenantID, kind}
	row, ok := m.rows[key]
	if !ok {
		row = &Sequence{TenantID: tenantID, Kind: kind, Pattern: defaultPattern}
		m.rows[key] = row
	}
	row.Counter++
	return row.Counter, row.Pattern, nil
}

func (m *memoryRepo) SetPattern(_ context.Context, tenantID uuid.UUID, kind Kind, pattern string) (Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := seqKey{tenantID, kind}
	row, ok := m.rows[key]
	if !ok {
		row = &Sequence{TenantID: tenantID, Kind: kind}
		m.rows[key] = row
	}
	row.Pattern = pattern
	return *row, nil
}

func (m *memoryRepo) ListSequences(_ context.Context, tenantID uuid.UUID) ([]Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sequence
	for k, row := range m.rows {
		if k.tenant == tenantID {
			out = append(out, *row)
		}
	}
	return out, nil
}

type auditSpy struct{ logs []shared.AuditLog }

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService(repo RepositoryPort, audit AuditPort) *Service {
	svc := NewService(repo, audit)
	svc.clock = func() time.Time { return jan2026 }
	return svc
}

func TestIssueSequentialNumbers(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	tenant := uuid.New()

	_, err := svc.SetPattern(ctx, tenant, KindInvoice, "INV-0000")
	require.NoError(t, err)

	var got []string
	for i := 0; i < 3; i++ {
		issued, err := svc.Issue(ctx, tenant, KindInvoice)
		require.NoError(t, err)
		got = append(got, issued.Number)
	}
	require.Equal(t, []string{"INV-0001", "INV-0002", "INV-0003"}, got)
}

func TestIssueSeedsDefaultPattern(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	issued, err := svc.Issue(context.Background(), uuid.New(), KindReceipt)
	require.NoError(t, err)
	require.Equal(t, "REC-2026-00001", issued.Number)
	require.Empty(t, issued.Warning())
}

func TestIssueIsolatesTenantsAndKinds(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	first, err := svc.Issue(ctx, a, KindClient)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, a, KindPatient)
	require.NoError(t, err)
	other, err := svc.Issue(ctx, b, KindClient)
	require.NoError(t, err)

	require.Equal(t, int64(1), first.Counter)
	require.Equal(t, int64(1), other.Counter)
}

func TestIssueWidensInsteadOfWrapping(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	tenant := uuid.New()

	_, err := svc.SetPattern(ctx, tenant, KindInvoice, "INV-0000")
	require.NoError(t, err)
	repo.rows[seqKey{tenant, KindInvoice}].Counter = 9999

	issued, err := svc.Issue(ctx, tenant, KindInvoice)
	require.NoError(t, err)
	require.Equal(t, "INV-10000", issued.Number)
	require.True(t, issued.Widened)
	require.Contains(t, issued.Warning(), "INV-10000")
}

func TestIssueConcurrentCallersGetUniqueGaplessValues(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	ctx := context.Background()
	tenant := uuid.New()
	const callers = 64

	var wg sync.WaitGroup
	results := make(chan int64, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			issued, err := svc.Issue(ctx, tenant, KindInvoice)
			if err == nil {
				results <- issued.Counter
			}
		}()
	}
	wg.Wait()
	close(results)

	var counters []int64
	for c := range results {
		counters = append(counters, c)
	}
	require.Len(t, counters, callers)
	sort.Slice(counters, func(i, j int) bool { return counters[i] < counters[j] })
	for i, c := range counters {
		require.Equal(t, int64(i+1), c)
	}
}

func TestPreviewDoesNotConsumeSlots(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	tenant := uuid.New()

	require.Equal(t, "INV-2026-00001", svc.Preview(DefaultPatterns[KindInvoice]))
	require.Empty(t, repo.rows)

	issued, err := svc.Issue(ctx, tenant, KindInvoice)
	require.NoError(t, err)
	require.Equal(t, int64(1), issued.Counter)
}

func TestSetPatternKeepsCounterAndAudits(t *testing.T) {
	repo := newMemoryRepo()
	audit := &auditSpy{}
	svc := newTestService(repo, audit)
	ctx := context.Background()
	tenant := uuid.New()

	_, err := svc.Issue(ctx, tenant, KindClient)
	require.NoError(t, err)

	seq, err := svc.SetPattern(ctx, tenant, KindClient, "VC/year/0000")
	require.NoError(t, err)
	require.Equal(t, int64(1), seq.Counter)
	require.Equal(t, "VC/2026/0002", seq.Next)
	require.Len(t, audit.logs, 1)

	_, err = svc.SetPattern(ctx, tenant, KindClient, "")
	require.Error(t, err)
}

func TestListFillsDefaults(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	seqs, err := svc.List(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, seqs, len(Kinds))
	for _, seq := range seqs {
		require.Equal(t, DefaultPatterns[seq.Kind], seq.Pattern)
		require.Zero(t, seq.Counter)
	}
}
