package objectstore

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "valid",
			uri:        "gs://my-bucket/uploads/denis/file.csv",
			wantBucket: "my-bucket",
			wantObject: "uploads/denis/file.csv",
		},
		{
			name:    "missing scheme",
			uri:     "my-bucket/file.csv",
			wantErr: true,
		},
		{
			name:    "no object path",
			uri:     "gs://my-bucket",
			wantErr: true,
		},
		{
			name:    "trailing slash only",
			uri:     "gs://my-bucket/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = (%q, %q), want (%q, %q)",
					tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestUploadObjectName(t *testing.T) {
	got := UploadObjectName("uploads", "denis", "/tmp/statements/visa-march.csv")
	want := "uploads/denis/visa-march.csv"
	if got != want {
		t.Errorf("UploadObjectName = %q, want %q", got, want)
	}
}
