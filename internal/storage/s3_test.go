package storage

import "testing"

func TestParseURL(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		wantErr     bool
	}{
		{"s3://bucket/dir/file.pdf", "bucket", "dir/file.pdf", false},
		{"s3://bucket/file.pdf", "bucket", "file.pdf", false},
		{"s3://bucket/", "", "", true},
		{"s3:///key", "", "", true},
		{"http://bucket/key", "", "", true},
	}
	for _, tc := range tests {
		b, k, err := ParseURL(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseURL(%q) err = %v", tc.in, err)
			continue
		}
		if b != tc.bucket || k != tc.key {
			t.Errorf("ParseURL(%q) = %q,%q", tc.in, b, k)
		}
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, job, name, want string
	}{
		{"splits", "j1", "/out/Parte_1_doc.pdf", "splits/j1/Parte_1_doc.pdf"},
		{"/a/b/", "j1", "x.pdf", "a/b/j1/x.pdf"},
		{"", "", "x.pdf", "x.pdf"},
	}
	for _, tc := range tests {
		if got := ObjectKey(tc.prefix, tc.job, tc.name); got != tc.want {
			t.Errorf("ObjectKey(%q,%q,%q) = %q, want %q", tc.prefix, tc.job, tc.name, got, tc.want)
		}
	}
}
