package ingest

import (
	"errors"
	"testing"
)

func TestDecodeTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		want    Task
		wantErr error
	}{
		{
			name: "upsert defaults to content",
			data: `{"action":"upsert","url":"https://example.org/a"}`,
			want: Task{Action: ActionUpsert, URL: "https://example.org/a", Type: TypeContent},
		},
		{
			name: "media upsert",
			data: `{"action":"upsert","url":"https://example.org/a.pdf","type":"media"}`,
			want: Task{Action: ActionUpsert, URL: "https://example.org/a.pdf", Type: TypeMedia},
		},
		{
			name: "delete",
			data: `{"action":"delete","url":"https://example.org/a"}`,
			want: Task{Action: ActionDelete, URL: "https://example.org/a"},
		},
		{
			name:    "missing url",
			data:    `{"action":"delete"}`,
			wantErr: ErrMissingURL,
		},
		{
			name:    "unknown action",
			data:    `{"action":"replicate","url":"https://example.org/a"}`,
			wantErr: ErrUnknownAction,
		},
		{
			name:    "not json",
			data:    `action=upsert`,
			wantErr: errAny,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeTask([]byte(tt.data))
			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("DecodeTask() succeeded, want error")
				}
				if tt.wantErr != errAny && !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeTask() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeTask() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeTask() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// errAny marks "any error will do" in table entries.
var errAny = errors.New("any error")
