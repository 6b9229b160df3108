package inputval

import "testing"

func TestIsValidHTTPURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com", true},
		{"https://example.com/path?query=1", true},
		{"http://localhost:8080", true},
		{"  https://example.com  ", true},

		{"", false},
		{"   ", false},
		{"ftp://example.com", false},
		{"mailto:user@example.com", false},
		{"example.com", false},
		{"//example.com", false},
		{"not a url", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := IsValidHTTPURL(tt.url); got != tt.want {
				t.Errorf("IsValidHTTPURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsValidObjectID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"507f1f77bcf86cd799439011", true},
		{"FFFFFFFFFFFFFFFFFFFFFFFF", true},
		{"  507f1f77bcf86cd799439011  ", true},

		{"", false},
		{"507f1f77bcf86cd79943901", false},   // 23 chars
		{"507f1f77bcf86cd7994390111", false}, // 25 chars
		{"507f1f77bcf86cd79943901g", false},
		{"not-a-valid-id", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := IsValidObjectID(tt.id); got != tt.want {
				t.Errorf("IsValidObjectID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	type topicInput struct {
		Identifier string `json:"identifier" validate:"required,max=10" label:"Identifier"`
		Capacity   *int   `json:"capacity" validate:"required,gte=0" label:"Capacity"`
		Link       string `json:"link" validate:"omitempty,httpurl" label:"Link"`
		TeamID     string `json:"team_id" validate:"omitempty,objectid" label:"Team"`
	}
	two, neg := 2, -1

	tests := []struct {
		name      string
		input     topicInput
		wantField string
		wantFirst string
	}{
		{"valid", topicInput{Identifier: "T1", Capacity: &two}, "", ""},
		{"missing identifier", topicInput{Capacity: &two}, "identifier", "Identifier is required."},
		{"identifier too long", topicInput{Identifier: "ABCDEFGHIJKL", Capacity: &two}, "identifier", "Identifier must be at most 10 characters."},
		{"missing capacity", topicInput{Identifier: "T1"}, "capacity", "Capacity is required."},
		{"negative capacity", topicInput{Identifier: "T1", Capacity: &neg}, "capacity", "Capacity must be at least 0."},
		{"bad link", topicInput{Identifier: "T1", Capacity: &two, Link: "javascript:alert(1)"}, "link", "Link must be a valid http(s) URL."},
		{"bad team", topicInput{Identifier: "T1", Capacity: &two, TeamID: "x"}, "team_id", "Team must be a valid ID."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(&tt.input)
			if tt.wantFirst == "" {
				if res.HasErrors() {
					t.Fatalf("unexpected errors: %v", res.Errors)
				}
				return
			}
			if !res.HasErrors() {
				t.Fatal("expected errors")
			}
			if res.First() != tt.wantFirst {
				t.Errorf("First() = %q, want %q", res.First(), tt.wantFirst)
			}
			if res.Errors[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", res.Errors[0].Field, tt.wantField)
			}
		})
	}
}

func TestResult_All(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		r := &Result{}
		if r.All() != "" || r.First() != "" {
			t.Errorf("expected empty, got %q / %q", r.All(), r.First())
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		r := &Result{Errors: []FieldError{{Message: "Error 1"}, {Message: "Error 2"}}}
		if want := "Error 1; Error 2"; r.All() != want {
			t.Errorf("All() = %q, want %q", r.All(), want)
		}
	})

	t.Run("nil result", func(t *testing.T) {
		var r *Result
		if r.HasErrors() {
			t.Error("nil result should have no errors")
		}
	})
}
