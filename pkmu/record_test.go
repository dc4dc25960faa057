package pkmu

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	r, err := New([]float64{0, 1, 2}, []float64{0, 0.5, 1},
		map[string][][]float64{
			"power": testGrid([]float64{1.5, math.NaN()}, []float64{3, 4}),
			"modes": testGrid([]float64{8, 0}, []float64{12, 16}),
		},
		WithForceIndexMatch(),
		WithMetadata(map[string]any{
			"volume":     512.0,
			"shot_noise": 0.25,
			"edges":      []float64{0, 1, 2},
			"label":      "auto",
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := r.Encode(&buf); err != nil {
		t.Fatal(err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if got.Nk() != 2 || got.Nmu() != 2 {
		t.Fatalf("shape = (%d,%d), want (2,2)", got.Nk(), got.Nmu())
	}

	if !got.ForceIndexMatch() {
		t.Fatal("matching policy lost in round trip")
	}

	if got.IsValid(0, 1) {
		t.Fatal("masked cell came back valid")
	}

	power, err := got.Column("power")
	if err != nil {
		t.Fatal(err)
	}

	if !math.IsNaN(power[0][1]) {
		t.Fatalf("masked cell = %v, want NaN", power[0][1])
	}

	if power[1][0] != 3 || power[1][1] != 4 {
		t.Fatalf("power row 1 = %v, want [3 4]", power[1])
	}

	if v, _ := got.Meta("volume"); v.(float64) != 512.0 {
		t.Fatalf("volume metadata = %v", v)
	}

	if v, _ := got.Meta("label"); v.(string) != "auto" {
		t.Fatalf("label metadata = %v", v)
	}

	edges, _ := got.Meta("edges")
	arr, ok := edges.([]float64)
	if !ok || len(arr) != 3 || arr[2] != 2 {
		t.Fatalf("edges metadata = %#v, want []float64{0,1,2}", edges)
	}
}

func TestEncodeRejectsReservedMetadataKey(t *testing.T) {
	r, err := New([]float64{0, 1}, []float64{0, 1},
		map[string][][]float64{"power": testGrid([]float64{1})},
		WithMetadata(map[string]any{"kedges": 1.0}),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Encode(&bytes.Buffer{}); err == nil {
		t.Fatal("reserved metadata key must be rejected")
	}
}

func TestDecodeRejectsMissingColumnData(t *testing.T) {
	record := `{"columns":["power"],"kedges":[0,1],"muedges":[0,1],` +
		`"valid":[[true]],"data":{},"metadata_keys":[]}`

	if _, err := Decode(strings.NewReader(record)); err == nil {
		t.Fatal("record listing a column without data must be rejected")
	}
}
