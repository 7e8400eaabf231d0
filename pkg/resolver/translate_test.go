package resolver

import (
	"testing"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
)

func TestTranslateSourceControl(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			"github",
			"git+https://github.com/org/repo#deadbeef",
			"https://github.com/org/repo/archive/deadbeef.tar.gz",
		},
		{
			"github with .git suffix",
			"git+https://github.com/org/repo.git#deadbeef",
			"https://github.com/org/repo/archive/deadbeef.tar.gz",
		},
		{
			"codeberg",
			"git+https://codeberg.org/org/repo#abc",
			"https://codeberg.org/org/repo/archive/abc.tar.gz",
		},
		{
			"gitea",
			"git+https://gitea.com/org/repo#abc",
			"https://gitea.com/org/repo/archive/abc.tar.gz",
		},
		{
			"gitlab uses dashed archive path",
			"git+https://gitlab.com/org/repo#abc",
			"https://gitlab.com/org/repo/-/archive/abc.tar.gz",
		},
		{
			"git+http scheme",
			"git+http://github.com/org/repo#abc",
			"https://github.com/org/repo/archive/abc.tar.gz",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Translate(tt.raw)
			if err != nil {
				t.Fatalf("Translate() error = %v", err)
			}
			if tr.Untranslatable {
				t.Fatal("Translate() = untranslatable, want archive URL")
			}
			if tr.URL != tt.want {
				t.Errorf("URL = %q, want %q", tr.URL, tt.want)
			}
			if tr.Ext != "tar.gz" {
				t.Errorf("Ext = %q, want tar.gz", tr.Ext)
			}
		})
	}
}

func TestTranslateUnknownHost(t *testing.T) {
	tr, err := Translate("git+https://example.net/x#deadbeef")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if !tr.Untranslatable {
		t.Errorf("Translate() = %+v, want untranslatable", tr)
	}
}

func TestTranslateMissingCommitIsFatal(t *testing.T) {
	_, err := Translate("git+https://github.com/org/repo")
	if !errors.Is(err, errors.ErrCodeMissingCommit) {
		t.Errorf("error = %v, want MISSING_COMMIT", err)
	}
}

func TestTranslateInjective(t *testing.T) {
	inputs := []string{
		"git+https://github.com/org/repo#c1",
		"git+https://github.com/org/repo#c2",
		"git+https://github.com/org/other#c1",
		"git+https://gitlab.com/org/repo#c1",
		"git+https://codeberg.org/org/repo#c1",
	}
	seen := make(map[string]string)
	for _, raw := range inputs {
		tr, err := Translate(raw)
		if err != nil || tr.Untranslatable {
			t.Fatalf("Translate(%s) = %+v, %v", raw, tr, err)
		}
		if prev, dup := seen[tr.URL]; dup {
			t.Errorf("Translate(%s) and Translate(%s) collide on %s", raw, prev, tr.URL)
		}
		seen[tr.URL] = raw
	}
}

func TestTranslateTarballPassthrough(t *testing.T) {
	tr, err := Translate("https://example.com/foo-1.0.tar.gz")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if tr.URL != "https://example.com/foo-1.0.tar.gz" || tr.Ext != "tar.gz" {
		t.Errorf("Translate() = %+v", tr)
	}
}

func TestArchiveExtension(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://e.com/a.tar", "tar"},
		{"https://e.com/a.tar.gz", "tar.gz"},
		{"https://e.com/a.tgz", "tar.gz"},
		{"https://e.com/a.tar.xz", "tar.xz"},
		{"https://e.com/a.txz", "tar.xz"},
		{"https://e.com/a.tar.zst", "tar.zst"},
		{"https://e.com/a.tzst", "tar.zst"},
		{"https://e.com/a.zip", "zip"},
		{"https://e.com/a.tar.gz?token=x", "tar.gz"}, // query does not defeat suffix match
	}
	for _, tt := range tests {
		got, err := ArchiveExtension(tt.raw)
		if err != nil {
			t.Errorf("ArchiveExtension(%s) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ArchiveExtension(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestArchiveExtensionUnknownIsFatal(t *testing.T) {
	_, err := ArchiveExtension("https://e.com/a.rar")
	if !errors.Is(err, errors.ErrCodeUnsupportedArchive) {
		t.Errorf("error = %v, want UNSUPPORTED_ARCHIVE", err)
	}
}
