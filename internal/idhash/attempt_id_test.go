package idhash

import (
	"testing"
)

func TestComputeAttemptID(t *testing.T) {
	tests := []struct {
		name            string
		walletAddress   string
		contentID       string
		sizeBytes       int64
		durationSeconds int64
		startedAt       int64
		wantLen         int // hash length should be 64
	}{
		{
			name:            "basic deposit",
			walletAddress:   "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
			contentID:       "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
			sizeBytes:       1048576,
			durationSeconds: 86400,
			startedAt:       1704067234567,
			wantLen:         64,
		},
		{
			name:            "small deposit",
			walletAddress:   "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
			contentID:       "content-001",
			sizeBytes:       512,
			durationSeconds: 3600,
			startedAt:       1704067300000,
			wantLen:         64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeAttemptID(tt.walletAddress, tt.contentID, tt.sizeBytes, tt.durationSeconds, tt.startedAt)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeAttemptID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeAttemptID(tt.walletAddress, tt.contentID, tt.sizeBytes, tt.durationSeconds, tt.startedAt)
			if got != got2 {
				t.Errorf("ComputeAttemptID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeAttemptID_DifferentInputs(t *testing.T) {
	base := ComputeAttemptID("wallet", "content", 100, 3600, 1000)

	diffWallet := ComputeAttemptID("other_wallet", "content", 100, 3600, 1000)
	if base == diffWallet {
		t.Error("Different wallet should produce different hash")
	}

	diffContent := ComputeAttemptID("wallet", "other_content", 100, 3600, 1000)
	if base == diffContent {
		t.Error("Different content should produce different hash")
	}

	diffSize := ComputeAttemptID("wallet", "content", 200, 3600, 1000)
	if base == diffSize {
		t.Error("Different size should produce different hash")
	}

	diffDuration := ComputeAttemptID("wallet", "content", 100, 7200, 1000)
	if base == diffDuration {
		t.Error("Different duration should produce different hash")
	}

	diffStart := ComputeAttemptID("wallet", "content", 100, 3600, 2000)
	if base == diffStart {
		t.Error("Different start time should produce different hash")
	}
}
