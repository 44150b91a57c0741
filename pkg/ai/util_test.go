package ai

import (
	"reflect"
	"testing"
)

type flexTarget struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	Count int      `json:"count"`
}

func TestUnmarshalFlexible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  flexTarget
	}{
		{
			name:  "valid json",
			input: `{"name":"alice","tags":["a","b"],"count":2}`,
			want:  flexTarget{Name: "alice", Tags: []string{"a", "b"}, Count: 2},
		},
		{
			name:  "double encoded",
			input: `"{\"name\":\"alice\",\"tags\":[\"a\"],\"count\":1}"`,
			want:  flexTarget{Name: "alice", Tags: []string{"a"}, Count: 1},
		},
		{
			name:  "unquoted keys repaired",
			input: `{name: "alice", tags: ["a"], count: 1}`,
			want:  flexTarget{Name: "alice", Tags: []string{"a"}, Count: 1},
		},
		{
			name:  "trailing comma repaired",
			input: `{"name":"alice","tags":["a",],"count":1,}`,
			want:  flexTarget{Name: "alice", Tags: []string{"a"}, Count: 1},
		},
		{
			name:  "duplicate leading brace stripped",
			input: `{{"name":"alice","tags":["a"],"count":1}`,
			want:  flexTarget{Name: "alice", Tags: []string{"a"}, Count: 1},
		},
		{
			name:  "surrounding whitespace",
			input: "  \n" + `{"name":"alice","tags":null,"count":0}` + "\n ",
			want:  flexTarget{Name: "alice"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var got flexTarget
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible(%q) failed: %v", tc.input, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("UnmarshalFlexible(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexibleUnrepairable(t *testing.T) {
	t.Parallel()

	var got flexTarget
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatal("UnmarshalFlexible accepted unrepairable input")
	}
}

func TestGenerateSchema(t *testing.T) {
	t.Parallel()

	schema := GenerateSchema(&flexTarget{})
	if schema == nil {
		t.Fatal("GenerateSchema returned nil")
	}
	// The reflector must inline definitions rather than use $ref, which
	// structured-output endpoints cannot resolve.
	schemaPtr := GenerateSchema(flexTarget{})
	if schemaPtr == nil {
		t.Fatal("GenerateSchema returned nil for non-pointer value")
	}
}
