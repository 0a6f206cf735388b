// v0
// internal/command/command_test.go
package command

import (
	"errors"
	"reflect"
	"testing"

	"nrgchamp/fuzzydash/internal/dashboard"
	"nrgchamp/fuzzydash/internal/fuzzy"
)

func testLimits() Limits {
	return LimitsFromSet(fuzzy.DefaultSet(), Range{Min: 16, Max: 30}, Range{Min: -10, Max: 50}, Range{Min: 0, Max: 100})
}

func TestLimitsFromSet(t *testing.T) {
	l := testLimits()
	if l.Erro != (Range{Min: -12, Max: 12}) {
		t.Fatalf("unexpected erro range: %+v", l.Erro)
	}
	if l.DeltaErro != (Range{Min: -6, Max: 6}) {
		t.Fatalf("unexpected delta range: %+v", l.DeltaErro)
	}
}

func TestBuildPointwise(t *testing.T) {
	cmd, err := BuildPointwise(dashboard.ManualInput{Erro: "1.5", DeltaErro: "-0,25"}, testLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, err := Encode(cmd)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	want := `{"cmd":"controle_pontual","erro":1.5,"delta_erro":-0.25}`
	if string(payload) != want {
		t.Fatalf("expected %s, got %s", want, payload)
	}
}

func TestBuildSimulation(t *testing.T) {
	cmd, err := BuildSimulation(dashboard.ManualInput{TempExt: "25", Carga: "40", Setpoint: "22"}, testLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, _ := Encode(cmd)
	want := `{"cmd":"simular_24h","temp_ext":25,"carga":40,"setpoint":22}`
	if string(payload) != want {
		t.Fatalf("expected %s, got %s", want, payload)
	}
}

func TestInvalidInputsListed(t *testing.T) {
	cases := []struct {
		name  string
		build func() error
		want  []string
	}{
		{
			name: "pointwise non numeric and out of range",
			build: func() error {
				_, err := BuildPointwise(dashboard.ManualInput{Erro: "abc", DeltaErro: "9"}, testLimits())
				return err
			},
			want: []string{"erro", "delta_erro"},
		},
		{
			name: "simulation empty setpoint",
			build: func() error {
				_, err := BuildSimulation(dashboard.ManualInput{TempExt: "25", Carga: "40"}, testLimits())
				return err
			},
			want: []string{"setpoint"},
		},
		{
			name: "simulation setpoint out of range",
			build: func() error {
				_, err := BuildSimulation(dashboard.ManualInput{TempExt: "25", Carga: "140", Setpoint: "40"}, testLimits())
				return err
			},
			want: []string{"carga", "setpoint"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.build()
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FieldError, got %T", err)
			}
			if !reflect.DeepEqual(fe.Fields, tc.want) {
				t.Fatalf("expected fields %v, got %v", tc.want, fe.Fields)
			}
		})
	}
}
