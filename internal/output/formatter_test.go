package output

import (
	"bytes"
	"testing"

	"github.com/aryankumar/sfs/internal/aggregate"
)

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name         string
		format       Format
		opts         []Option
		expectedType string
	}{
		{
			name:         "table formatter default",
			format:       FormatTable,
			opts:         nil,
			expectedType: "*output.TableFormatter",
		},
		{
			name:         "json formatter",
			format:       FormatJSON,
			opts:         nil,
			expectedType: "*output.JSONFormatter",
		},
		{
			name:         "yaml formatter",
			format:       FormatYAML,
			opts:         nil,
			expectedType: "*output.YAMLFormatter",
		},
		{
			name:         "empty format defaults to table",
			format:       "",
			opts:         nil,
			expectedType: "*output.TableFormatter",
		},
		{
			name:         "unknown format defaults to table",
			format:       "unknown",
			opts:         nil,
			expectedType: "*output.TableFormatter",
		},
		{
			name:         "table with no color option",
			format:       FormatTable,
			opts:         []Option{WithNoColor(true)},
			expectedType: "*output.TableFormatter",
		},
		{
			name:         "table with no headers option",
			format:       FormatTable,
			opts:         []Option{WithNoHeaders(true)},
			expectedType: "*output.TableFormatter",
		},
		{
			name:         "table with wide option",
			format:       FormatTable,
			opts:         []Option{WithWide(true)},
			expectedType: "*output.TableFormatter",
		},
		{
			name:         "table with multiple options",
			format:       FormatTable,
			opts:         []Option{WithNoColor(true), WithNoHeaders(true), WithWide(true)},
			expectedType: "*output.TableFormatter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := NewFormatter(tt.format, tt.opts...)

			if formatter == nil {
				t.Fatal("NewFormatter returned nil")
			}

			// Check type using type assertion
			switch tt.expectedType {
			case "*output.TableFormatter":
				if _, ok := formatter.(*TableFormatter); !ok {
					t.Errorf("expected TableFormatter, got %T", formatter)
				}
			case "*output.JSONFormatter":
				if _, ok := formatter.(*JSONFormatter); !ok {
					t.Errorf("expected JSONFormatter, got %T", formatter)
				}
			case "*output.YAMLFormatter":
				if _, ok := formatter.(*YAMLFormatter); !ok {
					t.Errorf("expected YAMLFormatter, got %T", formatter)
				}
			}
		})
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name              string
		opts              []Option
		expectedNoColor   bool
		expectedNoHeaders bool
		expectedWide      bool
	}{
		{
			name:              "default options",
			opts:              nil,
			expectedNoColor:   false,
			expectedNoHeaders: false,
			expectedWide:      false,
		},
		{
			name:              "with no color",
			opts:              []Option{WithNoColor(true)},
			expectedNoColor:   true,
			expectedNoHeaders: false,
			expectedWide:      false,
		},
		{
			name:              "with no headers",
			opts:              []Option{WithNoHeaders(true)},
			expectedNoColor:   false,
			expectedNoHeaders: true,
			expectedWide:      false,
		},
		{
			name:              "with wide",
			opts:              []Option{WithWide(true)},
			expectedNoColor:   false,
			expectedNoHeaders: false,
			expectedWide:      true,
		},
		{
			name:              "all options",
			opts:              []Option{WithNoColor(true), WithNoHeaders(true), WithWide(true)},
			expectedNoColor:   true,
			expectedNoHeaders: true,
			expectedWide:      true,
		},
		{
			name:              "override options",
			opts:              []Option{WithNoColor(true), WithNoColor(false)},
			expectedNoColor:   false,
			expectedNoHeaders: false,
			expectedWide:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := &Options{}
			for _, opt := range tt.opts {
				opt(options)
			}

			if options.NoColor != tt.expectedNoColor {
				t.Errorf("NoColor = %v, want %v", options.NoColor, tt.expectedNoColor)
			}
			if options.NoHeaders != tt.expectedNoHeaders {
				t.Errorf("NoHeaders = %v, want %v", options.NoHeaders, tt.expectedNoHeaders)
			}
			if options.Wide != tt.expectedWide {
				t.Errorf("Wide = %v, want %v", options.Wide, tt.expectedWide)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatter_AllFormats(t *testing.T) {
	singleData := map[string]interface{}{
		"name":  "test",
		"value": 123,
	}

	formats := []Format{FormatTable, FormatJSON, FormatYAML}

	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			formatter := NewFormatter(format, WithNoColor(true))

			t.Run("Format", func(t *testing.T) {
				var buf bytes.Buffer
				if err := formatter.Format(&buf, singleData); err != nil {
					t.Errorf("Format() error = %v", err)
				}
				if buf.Len() == 0 {
					t.Error("Format() produced no output")
				}
			})

			t.Run("FormatRun", func(t *testing.T) {
				var buf bytes.Buffer
				if err := formatter.FormatRun(&buf, sampleOutput()); err != nil {
					t.Errorf("FormatRun() error = %v", err)
				}
				if buf.Len() == 0 {
					t.Error("FormatRun() produced no output")
				}
			})

			t.Run("FormatRun empty", func(t *testing.T) {
				var buf bytes.Buffer
				if err := formatter.FormatRun(&buf, &aggregate.Output{}); err != nil {
					t.Errorf("FormatRun() error = %v", err)
				}
			})

			t.Run("FormatHealth", func(t *testing.T) {
				var buf bytes.Buffer
				if err := formatter.FormatHealth(&buf, sampleReport()); err != nil {
					t.Errorf("FormatHealth() error = %v", err)
				}
				if buf.Len() == 0 {
					t.Error("FormatHealth() produced no output")
				}
			})

			t.Run("FormatRuns", func(t *testing.T) {
				var buf bytes.Buffer
				if err := formatter.FormatRuns(&buf, sampleRuns()); err != nil {
					t.Errorf("FormatRuns() error = %v", err)
				}
				if buf.Len() == 0 {
					t.Error("FormatRuns() produced no output")
				}
			})
		})
	}
}
