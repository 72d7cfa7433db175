package envstruct_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/camziny/z-fit-2.0/internal/envstruct"
	"github.com/google/go-cmp/cmp"
)

func TestPopulate(t *testing.T) {
	unset := func(_ string) (string, bool) { return "", false }

	tests := []struct {
		name      string
		v         any
		lookupEnv func(string) (string, bool)
		want      any
		wantErr   error
	}{
		{
			name:      "nil",
			v:         nil,
			lookupEnv: unset,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "not pointer",
			v:         struct{}{},
			lookupEnv: unset,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "empty struct",
			v:         &struct{}{},
			lookupEnv: unset,
			want:      &struct{}{},
		},
		{
			name: "missing env without default",
			v: &struct {
				Addr string `env:"ZFIT_ADDR"`
			}{},
			lookupEnv: unset,
			wantErr:   envstruct.ErrEnvNotSet,
		},
		{
			name: "picks correct env variable and ignores untagged fields",
			v: &struct {
				Addr      string `env:"ZFIT_ADDR"`
				SqliteURL string `env:"ZFIT_SQLITE_URL"`
				Other     string
			}{},
			lookupEnv: func(s string) (string, bool) { return strings.ToLower(s), true },
			want: &struct {
				Addr      string `env:"ZFIT_ADDR"`
				SqliteURL string `env:"ZFIT_SQLITE_URL"`
				Other     string
			}{Addr: "zfit_addr", SqliteURL: "zfit_sqlite_url", Other: ""},
		},
		{
			name: "typed defaults",
			v: &struct {
				Metrics  bool          `env:"ZFIT_METRICS_ENABLED" envDefault:"true"`
				Retries  int           `env:"ZFIT_RETRIES" envDefault:"3"`
				Factor   float64       `env:"ZFIT_FACTOR" envDefault:"0.8"`
				Lifetime time.Duration `env:"ZFIT_SESSION_LIFETIME" envDefault:"720h"`
			}{},
			lookupEnv: unset,
			want: &struct {
				Metrics  bool          `env:"ZFIT_METRICS_ENABLED" envDefault:"true"`
				Retries  int           `env:"ZFIT_RETRIES" envDefault:"3"`
				Factor   float64       `env:"ZFIT_FACTOR" envDefault:"0.8"`
				Lifetime time.Duration `env:"ZFIT_SESSION_LIFETIME" envDefault:"720h"`
			}{Metrics: true, Retries: 3, Factor: 0.8, Lifetime: 720 * time.Hour},
		},
		{
			name: "unparsable int",
			v: &struct {
				Retries int `env:"ZFIT_RETRIES"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "three", true },
			wantErr:   envstruct.ErrParse,
		},
		{
			name: "unsupported kind",
			v: &struct {
				Tags []string `env:"ZFIT_TAGS" envDefault:"a"`
			}{},
			lookupEnv: unset,
			wantErr:   envstruct.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := envstruct.Populate(tt.v, tt.lookupEnv)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Populate() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Populate() unexpected error = %v", err)
			}
			if diff := cmp.Diff(tt.want, tt.v); diff != "" {
				t.Errorf("Populate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
