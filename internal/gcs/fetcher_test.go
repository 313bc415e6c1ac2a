package gcs

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/file.csv", "bucket", "file.csv", false},
		{"gs://bucket/dir/sub/file.csv", "bucket", "dir/sub/file.csv", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"gs:///object", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestIsGCSURI(t *testing.T) {
	if !IsGCSURI("gs://b/o") {
		t.Error("gs:// URI not recognized")
	}
	if IsGCSURI("/tmp/file.csv") {
		t.Error("local path misidentified as gs:// URI")
	}
}
