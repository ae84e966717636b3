package tokens

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func membership(a *Analysis) map[Category][]int64 {
	out := make(map[Category][]int64)
	for _, c := range Categories {
		ids := []int64{}
		for _, t := range a.Bucket(c) {
			ids = append(ids, t.ID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out[c] = ids
	}
	return out
}

func TestMerge_OrderIndependent(t *testing.T) {
	a := ClassifyBatch([]Token{{ID: 1, ExpiresAt: "2023-12-01"}, {ID: 2}}, 7, referenceNow)
	b := ClassifyBatch([]Token{{ID: 3, ExpiresAt: "2024-01-05"}, {ID: 4, ExpiresAt: "bad"}}, 7, referenceNow)
	c := ClassifyBatch([]Token{{ID: 5, ExpiresAt: "2026-01-01"}}, 7, referenceNow)

	left := &Analysis{}
	left.Merge(a)
	left.Merge(b)
	left.Merge(c)

	right := &Analysis{}
	right.Merge(b)
	right.Merge(c)
	right.Merge(a)

	if diff := cmp.Diff(membership(left), membership(right)); diff != "" {
		t.Errorf("Membership differs by merge order (-left +right):\n%s", diff)
	}
	if left.TotalCount != 5 || right.TotalCount != 5 {
		t.Errorf("Expected total 5, got %d and %d", left.TotalCount, right.TotalCount)
	}
	if left.Summary() != right.Summary() {
		t.Errorf("Summaries differ: %+v vs %+v", left.Summary(), right.Summary())
	}
}

func TestMerge_PreservesOrderWithinBucket(t *testing.T) {
	acc := &Analysis{}
	acc.Merge(ClassifyBatch([]Token{{ID: 1}, {ID: 2}}, 7, referenceNow))
	acc.Merge(ClassifyBatch([]Token{{ID: 3}}, 7, referenceNow))

	got := []int64{}
	for _, t := range acc.NoExpiration {
		got = append(got, t.ID)
	}
	if diff := cmp.Diff([]int64{1, 2, 3}, got); diff != "" {
		t.Errorf("Unexpected order (-want +got):\n%s", diff)
	}
}

func TestAttachScope_Isolation(t *testing.T) {
	acc := &Analysis{}

	first := ClassifyBatch([]Token{{ID: 1, Owner: ProjectOwner{ProjectID: 10, AccessLevel: AccessMaintainer}}}, 7, referenceNow)
	first.AttachScope("api", "platform/api")
	acc.Merge(first)

	// Re-stamping the already merged batch must not reach the accumulator.
	first.AttachScope("renamed", "platform/renamed")

	second := ClassifyBatch([]Token{{ID: 2, Owner: ProjectOwner{ProjectID: 11}}}, 7, referenceNow)
	second.AttachScope("web", "platform/web")
	acc.Merge(second)

	want := map[int64]ProjectOwner{
		1: {ProjectID: 10, AccessLevel: AccessMaintainer, Name: "api", Path: "platform/api"},
		2: {ProjectID: 11, Name: "web", Path: "platform/web"},
	}
	for _, tok := range acc.NoExpiration {
		owner, ok := tok.Owner.(ProjectOwner)
		if !ok {
			t.Fatalf("Token %d lost its project owner", tok.ID)
		}
		if diff := cmp.Diff(want[tok.ID], owner); diff != "" {
			t.Errorf("Token %d owner mismatch (-want +got):\n%s", tok.ID, diff)
		}
	}
}

func TestAttachScope_SkipsPersonalTokens(t *testing.T) {
	a := ClassifyBatch([]Token{{ID: 1, Owner: UserOwner{UserID: 5}}}, 7, referenceNow)
	a.AttachScope("ignored", "ignored")

	if owner := a.NoExpiration[0].Owner; owner != (UserOwner{UserID: 5}) {
		t.Errorf("Personal owner changed: %+v", owner)
	}
}

func TestSummary(t *testing.T) {
	a := ClassifyBatch([]Token{
		{ID: 1, ExpiresAt: "2023-01-01"},
		{ID: 2, ExpiresAt: "2023-06-01", Owner: GroupOwner{GroupID: 1}},
		{ID: 3, ExpiresAt: "2024-01-02", Owner: ProjectOwner{ProjectID: 1}},
		{ID: 4, ExpiresAt: "2030-01-01"},
		{ID: 5, ExpiresAt: "garbage"},
		{ID: 6},
	}, 7, referenceNow)

	s := a.Summary()
	want := Summary{
		TotalTokens:      6,
		ExpiredCount:     2,
		ExpiringCount:    1,
		HealthyCount:     2,
		PermanentCount:   1,
		ProblematicCount: 3,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}
	if s.ProblematicCount != s.ExpiredCount+s.ExpiringCount {
		t.Error("Problematic count is not expired + expiring")
	}
	if s.TotalTokens != s.ExpiredCount+s.ExpiringCount+s.HealthyCount+s.PermanentCount {
		t.Error("Total does not equal the sum of categories")
	}

	group := a.SummaryFor(ScopeGroup)
	if group.TotalTokens != 1 || group.ExpiredCount != 1 {
		t.Errorf("Unexpected group summary: %+v", group)
	}
	personal := a.SummaryFor(ScopePersonal)
	if personal.TotalTokens != 4 || personal.ProblematicCount != 1 {
		t.Errorf("Unexpected personal summary: %+v", personal)
	}
}

func TestGroupByScope(t *testing.T) {
	bucket := []Token{
		{ID: 1},
		{ID: 2, Owner: ProjectOwner{ProjectID: 1}},
		{ID: 3, Owner: GroupOwner{GroupID: 1}},
		{ID: 4, Owner: UserOwner{UserID: 9}},
	}

	grouped := GroupByScope(bucket)
	if len(grouped[ScopePersonal]) != 2 || len(grouped[ScopeProject]) != 1 || len(grouped[ScopeGroup]) != 1 {
		t.Errorf("Unexpected grouping: %v", grouped)
	}
	if grouped[ScopePersonal][0].ID != 1 || grouped[ScopePersonal][1].ID != 4 {
		t.Error("Grouping did not keep discovery order")
	}
}

func TestDaysString(t *testing.T) {
	tests := []struct {
		days Days
		want string
	}{
		{DaysOf(-3), "-3"},
		{DaysOf(0), "0"},
		{DaysNever, "Never"},
		{DaysUnknown, "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.days.String(); got != tt.want {
			t.Errorf("Days.String() = %q, want %q", got, tt.want)
		}
	}
}
