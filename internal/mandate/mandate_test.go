package mandate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	vberrors "github.com/jcgs2503/vestbridge/internal/errors"
)

func TestValidate_RejectsMalformedLimits(t *testing.T) {
	tests := []struct {
		name  string
		perms Permissions
		field string
	}{
		{"negative order size", Permissions{MaxOrderSizeUSD: f64(-1)}, "max_order_size_usd"},
		{"negative daily notional", Permissions{MaxDailyNotionalUSD: f64(-100)}, "max_daily_notional_usd"},
		{"negative trade count", Permissions{MaxDailyTrades: iptr(-1)}, "max_daily_trades"},
		{"concentration above 100", Permissions{MaxConcentrationPct: f64(101)}, "max_concentration_pct"},
		{"concentration below 0", Permissions{MaxConcentrationPct: f64(-5)}, "max_concentration_pct"},
		{"unknown side", Permissions{AllowedSides: []string{"hold"}}, "allowed_sides"},
		{"unknown order type", Permissions{AllowedOrderTypes: []string{"iceberg"}}, "allowed_order_types"},
		{"unknown asset type", Permissions{AllowedAssetTypes: []string{"bond"}}, "allowed_asset_types"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mandate{Permissions: tt.perms}
			_, err := m.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *vberrors.ValidationError
			if !vberrors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestValidate_OverlapIsWarningNotError(t *testing.T) {
	m := &Mandate{Permissions: Permissions{
		AllowedSymbols: []string{"aapl", "TSLA"},
		BlockedSymbols: []string{"AAPL"},
	}}
	overlaps, err := m.Validate()
	if err != nil {
		t.Fatalf("overlap must not be fatal: %v", err)
	}
	if len(overlaps) != 1 || overlaps[0] != "AAPL" {
		t.Errorf("overlaps = %v, want [AAPL]", overlaps)
	}
}

func TestLoad_ReadsYAMLAndGeneratesID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.yaml")
	yaml := `description: test mandate
permissions:
  max_order_size_usd: 5000
  allowed_sides: [buy, sell]
  blocked_symbols: [GME]
  trading_hours_only: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasPrefix(m.MandateID, "mnd_") {
		t.Errorf("mandate ID = %q, want mnd_ prefix", m.MandateID)
	}
	if m.Version != 1 {
		t.Errorf("version = %d, want default 1", m.Version)
	}
	if m.Permissions.MaxOrderSizeUSD == nil || *m.Permissions.MaxOrderSizeUSD != 5000 {
		t.Error("max_order_size_usd not parsed")
	}
	if m.Permissions.MaxDailyNotionalUSD != nil {
		t.Error("unset cap should stay nil (unrestricted)")
	}
	if !m.Permissions.TradingHoursOnly {
		t.Error("trading_hours_only not parsed")
	}
}

func TestLoad_RejectsInvalidMandate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	yaml := `permissions:
  max_order_size_usd: -10
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, zerolog.Nop()); err == nil {
		t.Fatal("expected load failure for negative cap")
	}
}

func TestFileHash_IsStableAndPrefixed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.yaml")
	if err := os.WriteFile(path, []byte("description: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := FileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	h2, _ := FileHash(path)
	if h1 != h2 {
		t.Error("hash of unchanged file must be stable")
	}
	if !strings.HasPrefix(h1, "sha256:") {
		t.Errorf("hash = %q, want sha256: prefix", h1)
	}

	if err := os.WriteFile(path, []byte("description: y\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	h3, _ := FileHash(path)
	if h3 == h1 {
		t.Error("hash must change when the file changes")
	}
}
