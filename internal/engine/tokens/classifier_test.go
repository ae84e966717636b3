package tokens

import (
	"errors"
	"testing"
	"time"
)

var referenceNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt string
		threshold int
		now       time.Time
		category  Category
		status    Status
		days      Days
	}{
		{
			name:      "No Expiration",
			expiresAt: "",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryNoExpiration,
			status:    StatusNoExpiration,
			days:      DaysNever,
		},
		{
			name:      "Very Large Threshold",
			expiresAt: "2024-01-05T00:00:00",
			threshold: 110000,
			now:       referenceNow,
			category:  CategoryExpiringSoon,
			status:    StatusExpiringSoon,
			days:      DaysOf(4),
		},
		{
			name:      "Expiry Centuries Away",
			expiresAt: "2400-01-01",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryHealthy,
			status:    StatusHealthy,
			days:      DaysOf(137331),
		},
		{
			name:      "Long Expired With Fraction",
			expiresAt: "1700-01-01T00:00:00.5Z",
			threshold: 7,
			now:       time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC),
			category:  CategoryExpired,
			status:    StatusExpired,
			days:      DaysOf(-118339),
		},
		{
			name:      "Exactly At Threshold",
			expiresAt: "2024-01-08T00:00:00",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryExpiringSoon,
			status:    StatusExpiringSoon,
			days:      DaysOf(7),
		},
		{
			name:      "Date Only At Threshold",
			expiresAt: "2024-01-08",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryExpiringSoon,
			status:    StatusExpiringSoon,
			days:      DaysOf(7),
		},
		{
			name:      "One Day Past Threshold",
			expiresAt: "2024-01-09T00:00:00",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryHealthy,
			status:    StatusHealthy,
			days:      DaysOf(8),
		},
		{
			name:      "Already Expired",
			expiresAt: "2023-12-31T00:00:00",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryExpired,
			status:    StatusExpired,
			days:      DaysOf(-1),
		},
		{
			name:      "Expires Exactly Now",
			expiresAt: "2024-01-01T00:00:00Z",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryExpired,
			status:    StatusExpired,
			days:      DaysOf(0),
		},
		{
			name:      "Eighteen Hours Left Truncates To Zero",
			expiresAt: "2024-01-01T18:00:00Z",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryExpiringSoon,
			status:    StatusExpiringSoon,
			days:      DaysOf(0),
		},
		{
			name:      "Six Hours Ago Floors To Minus One",
			expiresAt: "2023-12-31T18:00:00Z",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryExpired,
			status:    StatusExpired,
			days:      DaysOf(-1),
		},
		{
			name:      "Fractional Seconds With Zulu",
			expiresAt: "2024-01-05T12:00:00.123Z",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryExpiringSoon,
			status:    StatusExpiringSoon,
			days:      DaysOf(4),
		},
		{
			name:      "Offset Is Dropped Not Converted",
			expiresAt: "2024-01-09T01:00:00+02:00",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryHealthy,
			status:    StatusHealthy,
			days:      DaysOf(8),
		},
		{
			name:      "Zero Threshold Next Day Is Healthy",
			expiresAt: "2024-01-02",
			threshold: 0,
			now:       referenceNow,
			category:  CategoryHealthy,
			status:    StatusHealthy,
			days:      DaysOf(1),
		},
		{
			name:      "Now Compared On Wall Clock",
			expiresAt: "2024-01-01T00:00:00Z",
			threshold: 7,
			now:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("UTC+5", 5*3600)),
			category:  CategoryExpired,
			status:    StatusExpired,
			days:      DaysOf(0),
		},
		{
			name:      "Unparseable Fails Open",
			expiresAt: "not-a-date",
			threshold: 7,
			now:       referenceNow,
			category:  CategoryHealthy,
			status:    StatusError,
			days:      DaysUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := Token{ID: 1, Name: "ci", ExpiresAt: tt.expiresAt, Owner: UserOwner{UserID: 3}}

			got, category, err := Classify(token, tt.threshold, tt.now)
			if tt.status == StatusError {
				if !errors.Is(err, ErrInvalidExpiry) {
					t.Errorf("Expected ErrInvalidExpiry, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if category != tt.category {
				t.Errorf("Expected category %s, got %s", tt.category, category)
			}
			if got.Status != tt.status {
				t.Errorf("Expected status %q, got %q", tt.status, got.Status)
			}
			if got.DaysUntilExpiry != tt.days {
				t.Errorf("Expected days %s, got %s", tt.days, got.DaysUntilExpiry)
			}
		})
	}
}

func TestClassifyBatch_Totality(t *testing.T) {
	batch := []Token{
		{ID: 1, ExpiresAt: "2023-12-01"},
		{ID: 2, ExpiresAt: "2024-01-03"},
		{ID: 3, ExpiresAt: "2025-06-01"},
		{ID: 4},
		{ID: 5, ExpiresAt: "not-a-date"},
		{ID: 6, ExpiresAt: "2024-01-08T00:00:00Z"},
	}

	analysis := ClassifyBatch(batch, 7, referenceNow)

	if analysis.TotalCount != len(batch) {
		t.Fatalf("Expected total %d, got %d", len(batch), analysis.TotalCount)
	}

	seen := make(map[int64]Category)
	for _, c := range Categories {
		for _, tok := range analysis.Bucket(c) {
			if prev, ok := seen[tok.ID]; ok {
				t.Errorf("Token %d in both %s and %s", tok.ID, prev, c)
			}
			seen[tok.ID] = c
			if !tok.DaysUntilExpiry.IsSet() {
				t.Errorf("Token %d has no days until expiry", tok.ID)
			}
		}
	}
	if len(seen) != len(batch) {
		t.Errorf("Expected %d categorised tokens, got %d", len(batch), len(seen))
	}

	want := map[int64]Category{
		1: CategoryExpired,
		2: CategoryExpiringSoon,
		3: CategoryHealthy,
		4: CategoryNoExpiration,
		5: CategoryHealthy,
		6: CategoryExpiringSoon,
	}
	for id, c := range want {
		if seen[id] != c {
			t.Errorf("Token %d: expected %s, got %s", id, c, seen[id])
		}
	}
}

func TestClassifyBatch_NoExpirationIgnoresThreshold(t *testing.T) {
	for _, threshold := range []int{0, 7, 365} {
		analysis := ClassifyBatch([]Token{{ID: 1}}, threshold, time.Now())
		if len(analysis.NoExpiration) != 1 {
			t.Errorf("threshold %d: expected permanent token in no_expiration", threshold)
		}
	}
}

func TestClassifyBatch_DoesNotMutateInput(t *testing.T) {
	batch := []Token{{ID: 1, ExpiresAt: "2023-12-01", Scopes: []string{"api"}}}

	analysis := ClassifyBatch(batch, 7, referenceNow)
	analysis.Expired[0].Scopes[0] = "changed"

	if batch[0].Status != "" {
		t.Errorf("Input token status was modified: %q", batch[0].Status)
	}
	if batch[0].Scopes[0] != "api" {
		t.Errorf("Input token scopes were aliased")
	}
}

func TestClassifyBatch_Empty(t *testing.T) {
	analysis := ClassifyBatch(nil, 7, referenceNow)
	if analysis.TotalCount != 0 {
		t.Errorf("Expected empty analysis, got total %d", analysis.TotalCount)
	}
	if s := analysis.Summary(); s != (Summary{}) {
		t.Errorf("Expected zero summary, got %+v", s)
	}
}
