package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/execution/domain"
	venuedomain "github.com/fd1az/dexarb/business/venue/domain"
)

func archiveRecords() []domain.Record {
	started := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	return []domain.Record{
		{
			ID:            "rec-1",
			OpportunityID: "sushiswap>uniswap-v2:weth/usdc",
			StartedAt:     started,
			UpdatedAt:     started.Add(12 * time.Second),
			SourceVenue:   venuedomain.MustID("sushiswap"),
			TargetVenue:   venuedomain.MustID("uniswap-v2"),
			TokenIn:       "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			TokenOut:      "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			TradeSize:     decimal.NewFromInt(2),
			ExpectedUSD:   decimal.RequireFromString("18.40"),
			ActualUSD:     decimal.RequireFromString("16.05"),
			Status:        domain.RecordCompleted,
			GasUsed:       231_000,
			TxHash:        "0xabc",
		},
		{
			ID:            "rec-2",
			OpportunityID: "uniswap-v2>sushiswap:usdc/weth",
			StartedAt:     started.Add(time.Minute),
			UpdatedAt:     started.Add(time.Minute + 3*time.Second),
			SourceVenue:   venuedomain.MustID("uniswap-v2"),
			TargetVenue:   venuedomain.MustID("sushiswap"),
			TokenIn:       "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			TokenOut:      "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			TradeSize:     decimal.NewFromInt(500),
			ExpectedUSD:   decimal.RequireFromString("7.10"),
			Status:        domain.RecordSimulationFailed,
			Error:         "expected slippage 1.60% exceeds tolerance 1.00%",
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	want := archiveRecords()

	var buf bytes.Buffer
	if err := Write(&buf, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != len(want) {
		t.Fatalf("lines = %d, want %d", lines, len(want))
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("records = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Status != want[i].Status {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
		if !got[i].ExpectedUSD.Equal(want[i].ExpectedUSD) {
			t.Errorf("record %d ExpectedUSD = %s, want %s", i, got[i].ExpectedUSD, want[i].ExpectedUSD)
		}
		if !got[i].StartedAt.Equal(want[i].StartedAt) {
			t.Errorf("record %d StartedAt = %s, want %s", i, got[i].StartedAt, want[i].StartedAt)
		}
	}
}

func TestReadSkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, archiveRecords()[:1]); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf.WriteString("\n\n")

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
}

func TestReadRejectsMalformedLine(t *testing.T) {
	in := strings.NewReader(`{"id":"rec-1","status":"completed"}` + "\nnot json\n")
	if _, err := Read(in); err == nil {
		t.Fatal("expected an error on a malformed line")
	}
}

func TestExportImport(t *testing.T) {
	want := archiveRecords()
	path := filepath.Join(t.TempDir(), "nested", "records.jsonl")

	if err := Export(path, want); err != nil {
		t.Fatalf("export: %v", err)
	}

	// No temp file left behind next to the archive.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory entries = %d, want just the archive", len(entries))
	}

	got, err := Import(path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("records = %d, want %d", len(got), len(want))
	}
	if got[1].Error != want[1].Error {
		t.Errorf("record error = %q, want %q", got[1].Error, want[1].Error)
	}
}

func TestImportMissingFile(t *testing.T) {
	if _, err := Import(filepath.Join(t.TempDir(), "absent.jsonl")); err == nil {
		t.Fatal("expected an error for a missing archive")
	}
}
