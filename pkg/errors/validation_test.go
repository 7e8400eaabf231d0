package errors

import "testing"

func TestValidateDependencyName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "known_folders", false},
		{"hyphenated", "zig-clap", false},
		{"dotted", "libxml2.zig", false},
		{"empty", "", true},
		{"traversal", "../etc", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"control char", "bad\x01name", true},
		{"null byte", "bad\x00name", true},
		{"too long", string(make([]byte, 300)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDependencyName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDependencyName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidManifest) {
				t.Errorf("error code = %s, want INVALID_MANIFEST", GetCode(err))
			}
		})
	}
}

func TestValidateLocalPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "libs/foo", false},
		{"dot prefix", "./vendor/bar", false},
		{"internal dotdot resolving inside", "libs/../vendor", false},
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"parent escape", "../sibling", true},
		{"sneaky escape", "libs/../../outside", true},
		{"null byte", "a\x00b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLocalPath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLocalPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("error code = %s, want INVALID_PATH", GetCode(err))
			}
		})
	}
}
