package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/digitizerx/digitizerx/internal/log"
)

// fakeDirectory is an in-memory Directory for testing. Keys:
//   - assets: "column\x00value" -> asset id
//   - tokens: token -> asset id
//   - parts: part_code -> part id (exact); foldParts: lowercased code -> id
//   - workOrders: HR code -> work order UUID
//
// failAll makes every lookup return an error, to verify graceful degradation.
type fakeDirectory struct {
	assets     map[string]string
	tokens     map[string]string
	parts      map[string]string
	foldParts  map[string]string
	workOrders map[string]string
	failAll    bool
	calls      int
}

var errLookup = errors.New("connection refused")

func (f *fakeDirectory) AssetIDByColumn(_ context.Context, column, value string) (string, error) {
	f.calls++
	if f.failAll {
		return "", errLookup
	}
	return f.assets[column+"\x00"+value], nil
}

func (f *fakeDirectory) AssetIDByToken(_ context.Context, token string) (string, error) {
	f.calls++
	if f.failAll {
		return "", errLookup
	}
	return f.tokens[token], nil
}

func (f *fakeDirectory) PartIDByCode(_ context.Context, code string, fold bool) (string, error) {
	f.calls++
	if f.failAll {
		return "", errLookup
	}
	if fold {
		return f.foldParts[strings.ToLower(code)], nil
	}
	return f.parts[code], nil
}

func (f *fakeDirectory) WorkOrderIDByCode(_ context.Context, code string) (string, error) {
	f.calls++
	if f.failAll {
		return "", errLookup
	}
	return f.workOrders[code], nil
}

func newTestResolver(dir *fakeDirectory) *Resolver {
	return New(dir, "Plant1", log.NewNop())
}

const (
	woUUID    = "0b6f3a52-8a7e-4c3f-9a1d-2e4b5c6d7e8f"
	assetUUID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func TestResolve_JSONPayloads(t *testing.T) {
	dir := &fakeDirectory{
		workOrders: map[string]string{"1SJ44WH": woUUID},
		tokens:     map[string]string{assetUUID: "asset-1"},
		assets:     map[string]string{"asset_code\x00PUMP-01": "asset-2"},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "pm_wo with UUID ref",
			input: `{"type":"pm_wo","wo":"` + woUUID + `"}`,
			want:  "/pm/wo/" + woUUID,
		},
		{
			name:  "pm_wo with HR code resolved",
			input: `{"type":"pm_wo","ref":"WO-1SJ44WH"}`,
			want:  "/pm/wo/" + woUUID,
		},
		{
			name:  "pm_wo with unknown HR code keeps raw code",
			input: `{"type":"PM","ref":"WO-ZZZZ9"}`,
			want:  "/pm/wo/ZZZZ9",
		},
		{
			name:  "pm_wo falls back to token",
			input: `{"type":"pm","token":"` + woUUID + `"}`,
			want:  "/pm/wo/" + woUUID,
		},
		{
			name:  "pm_wo with nothing usable",
			input: `{"type":"pm_wo"}`,
			want:  "",
		},
		{
			name:  "part with uid and scope",
			input: `{"type":"part","part_uid":"p-77","plant_id":"P1","bin_code":"BIN-9"}`,
			want:  "/engineering/inventory-spare-parts-management?bin_code=BIN-9&part_uid=p-77&plant_id=P1",
		},
		{
			name:  "part prefers uid over code",
			input: `{"type":"part","uid":"p-77","code":"SPARE-1"}`,
			want:  "/engineering/inventory-spare-parts-management?part_uid=p-77",
		},
		{
			name:  "part with code alias only",
			input: `{"type":"part","code":"SPARE-1"}`,
			want:  "/engineering/inventory-spare-parts-management?part_code=SPARE-1",
		},
		{
			name:  "bin with explicit plant",
			input: `{"type":"bin","plant_id":"P1","bin_code":"BIN-9"}`,
			want:  "/engineering/inventory-spare-parts-management?bin_code=BIN-9&plant_id=P1",
		},
		{
			name:  "bin aliases produce identical route",
			input: `{"type":"bin","plant":"P1","bin":"BIN-9"}`,
			want:  "/engineering/inventory-spare-parts-management?bin_code=BIN-9&plant_id=P1",
		},
		{
			name:  "bin defaults plant",
			input: `{"type":"bin","bin_code":"BIN-A1"}`,
			want:  "/engineering/inventory-spare-parts-management?bin_code=BIN-A1&plant_id=Plant1",
		},
		{
			name:  "bin without bin code",
			input: `{"type":"bin","plant_id":"P1"}`,
			want:  "",
		},
		{
			name:  "asset with UUID id",
			input: `{"type":"asset","id":"` + assetUUID + `"}`,
			want:  "/equipment/" + assetUUID,
		},
		{
			name:  "equipment alias with asset code lookup",
			input: `{"type":"equipment","code":"PUMP-01"}`,
			want:  "/equipment/asset-2",
		},
		{
			name:  "asset token lookup",
			input: `{"type":"asset","token":"` + assetUUID + `"}`,
			want:  "/equipment/asset-1",
		},
		{
			name:  "generic token claimed by asset",
			input: `{"token":"` + assetUUID + `"}`,
			want:  "/equipment/asset-1",
		},
		{
			name:  "generic token unclaimed becomes work order",
			input: `{"token":"` + woUUID + `"}`,
			want:  "/pm/wo/" + woUUID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestResolver(dir).Resolve(context.Background(), tt.input)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolve_URLs(t *testing.T) {
	dir := &fakeDirectory{
		tokens:     map[string]string{assetUUID: "asset-1"},
		workOrders: map[string]string{"1SJ44WH": woUUID},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "pm work order path",
			input: "https://dx.example.com/pm/wo/" + woUUID,
			want:  "/pm/wo/" + woUUID,
		},
		{
			name:  "equipment path",
			input: "https://dx.example.com/equipment/" + assetUUID,
			want:  "/equipment/" + assetUUID,
		},
		{
			name:  "encoded path segment is decoded",
			input: "https://dx.example.com/pm/wo/WO%2D1SJ44WH",
			want:  "/pm/wo/WO-1SJ44WH",
		},
		{
			name:  "token query param claimed by asset",
			input: "https://dx.example.com/scan?token=" + assetUUID,
			want:  "/equipment/asset-1",
		},
		{
			name:  "qr query param unclaimed UUID becomes work order",
			input: "https://dx.example.com/scan?qr=" + woUUID,
			want:  "/pm/wo/" + woUUID,
		},
		{
			name:  "id query param with HR code",
			input: "https://dx.example.com/scan?id=WO-1SJ44WH",
			want:  "/pm/wo/" + woUUID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestResolver(dir).Resolve(context.Background(), tt.input)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolve_PlainStrategies(t *testing.T) {
	dir := &fakeDirectory{
		workOrders: map[string]string{"1SJ44WH": woUUID},
		assets: map[string]string{
			"asset_code\x00AC-0001":   "asset-2",
			"serial_no\x00SN/99-1234": "asset-3",
		},
		parts:     map[string]string{"SP-100-X": "part-1"},
		foldParts: map[string]string{"sp-200-y": "part-2"},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "WO-prefixed HR code resolves to UUID",
			input: "WO-1SJ44WH",
			want:  "/pm/wo/" + woUUID,
		},
		{
			name:  "bare HR code resolves to UUID",
			input: "1sj44wh",
			want:  "/pm/wo/" + woUUID,
		},
		{
			name:  "unknown HR code keeps raw code",
			input: "WO-UNKNOWN1",
			want:  "/pm/wo/UNKNOWN1",
		},
		{
			name:  "bin code with default plant",
			input: "BIN-A1",
			want:  "/engineering/inventory-spare-parts-management?bin_code=BIN-A1&plant_id=Plant1",
		},
		{
			name:  "legacy pipe pair",
			input: "Plant1|BIN-A1",
			want:  "/engineering/inventory-spare-parts-management?bin_code=BIN-A1&plant_id=Plant1",
		},
		{
			name:  "pipe pair with empty side falls through",
			input: "Plant1|",
			want:  "",
		},
		{
			name:  "asset code",
			input: "AC-0001",
			want:  "/equipment/asset-2",
		},
		{
			name:  "serial number",
			input: "SN/99-1234",
			want:  "/equipment/asset-3",
		},
		{
			name:  "part code exact",
			input: "SP-100-X",
			want:  "/engineering/inventory-spare-parts-management?part_uid=part-1",
		},
		{
			name:  "part code case-insensitive",
			input: "SP-200-Y",
			want:  "/engineering/inventory-spare-parts-management?part_uid=part-2",
		},
		{
			name:  "nothing matches",
			input: "!!! total garbage ???",
			want:  "",
		},
		{
			name:  "empty input",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestResolver(dir).Resolve(context.Background(), tt.input)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolve_BareUUID(t *testing.T) {
	t.Run("asset by id wins", func(t *testing.T) {
		dir := &fakeDirectory{assets: map[string]string{"id\x00" + assetUUID: assetUUID}}
		got := newTestResolver(dir).Resolve(context.Background(), assetUUID)
		if got != "/equipment/"+assetUUID {
			t.Errorf("Resolve() = %q, want equipment route", got)
		}
	})

	t.Run("asset by token wins", func(t *testing.T) {
		dir := &fakeDirectory{tokens: map[string]string{assetUUID: "asset-9"}}
		got := newTestResolver(dir).Resolve(context.Background(), assetUUID)
		if got != "/equipment/asset-9" {
			t.Errorf("Resolve() = %q, want /equipment/asset-9", got)
		}
	})

	t.Run("unmatched UUID falls back to work order unverified", func(t *testing.T) {
		dir := &fakeDirectory{}
		got := newTestResolver(dir).Resolve(context.Background(), woUUID)
		if got != "/pm/wo/"+woUUID {
			t.Errorf("Resolve() = %q, want unverified work order route", got)
		}
	})
}

// Lookup failures must degrade to the strategy's no-match behavior, never
// surface as an error or a panic.
func TestResolve_LookupFailuresDegrade(t *testing.T) {
	dir := &fakeDirectory{failAll: true}
	r := newTestResolver(dir)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "HR code keeps raw code when lookup errors",
			input: "WO-1SJ44WH",
			want:  "/pm/wo/1SJ44WH",
		},
		{
			name:  "bare UUID still routes to work order",
			input: woUUID,
			want:  "/pm/wo/" + woUUID,
		},
		{
			name:  "asset code lookup error yields no match",
			input: "AC-0001-LONGCODE",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(context.Background(), tt.input)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	dir := &fakeDirectory{workOrders: map[string]string{"1SJ44WH": woUUID}}
	r := newTestResolver(dir)

	first := r.Resolve(context.Background(), "WO-1SJ44WH")
	second := r.Resolve(context.Background(), "WO-1SJ44WH")
	if first != second {
		t.Errorf("Resolve not idempotent: %q vs %q", first, second)
	}
}
