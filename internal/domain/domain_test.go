package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

func TestStorageErrorMatchesKind(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewStorageError(ErrStorageUnavailable, "GetUserByID", CollectionUsers, "abc", cause)

	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected error to match ErrStorageUnavailable")
	}
	if errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected error not to match ErrDuplicateKey")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected error to unwrap to its cause")
	}

	wrapped := eris.Wrap(err, "loading user")
	if !IsStorageUnavailable(wrapped) {
		t.Fatalf("expected kind to survive eris wrapping")
	}

	msg := err.Error()
	for _, part := range []string{"GetUserByID", "User", "[abc]", "storage unavailable", "connection refused"} {
		if !strings.Contains(msg, part) {
			t.Fatalf("expected message %q to contain %q", msg, part)
		}
	}
}

func TestSingleReportsDataIntegrity(t *testing.T) {
	t.Parallel()

	none, err := Single[User]("GetUserByEmail", CollectionUsers, "a@x.com", nil)
	if err != nil || none != nil {
		t.Fatalf("expected nil result for no matches, got %v, %v", none, err)
	}

	one, err := Single("GetUserByEmail", CollectionUsers, "a@x.com", []User{{Username: "alice"}})
	if err != nil {
		t.Fatalf("Single returned error: %v", err)
	}
	if one.Username != "alice" {
		t.Fatalf("expected alice, got %q", one.Username)
	}

	_, err = Single("GetUserByEmail", CollectionUsers, "a@x.com", []User{{Username: "alice"}, {Username: "bob"}})
	if !IsDataIntegrity(err) {
		t.Fatalf("expected data integrity violation, got %v", err)
	}
}

func TestDistinctUsersDropsRepeatedIDs(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	users := DistinctUsers([]User{{ID: id, Username: "alice"}, {ID: id, Username: "alice"}, {ID: uuid.New(), Username: "bob"}})
	if len(users) != 2 {
		t.Fatalf("expected 2 distinct users, got %d", len(users))
	}
}

func TestMatchesActivated(t *testing.T) {
	t.Parallel()

	user := &User{IsActivated: false}
	if !user.MatchesActivated(nil) {
		t.Fatalf("expected nil filter to match")
	}
	if !user.MatchesActivated(Bool(false)) {
		t.Fatalf("expected false filter to match unactivated user")
	}
	if user.MatchesActivated(Bool(true)) {
		t.Fatalf("expected true filter to reject unactivated user")
	}
}

func TestParseTagsNormalizes(t *testing.T) {
	t.Parallel()

	tags := ParseTags(" Go, wiki;go ,, Storage ")
	expected := []string{"go", "wiki", "storage"}
	if len(tags) != len(expected) {
		t.Fatalf("expected %d tags, got %v", len(expected), tags)
	}
	for i, tag := range expected {
		if tags[i] != tag {
			t.Fatalf("expected tag %q at %d, got %q", tag, i, tags[i])
		}
	}

	if JoinTags([]string{"B", "a", "b"}) != "b,a" {
		t.Fatalf("unexpected joined tags %q", JoinTags([]string{"B", "a", "b"}))
	}
}

func TestNormalizeTagsSplitsSeparators(t *testing.T) {
	t.Parallel()

	tags := NormalizeTags([]string{"C++,Go", "go;wiki", "rust"})
	if strings.Join(tags, "|") != "c++|go|wiki|rust" {
		t.Fatalf("expected separators to split tags, got %v", tags)
	}

	if got := ParseTags(JoinTags(tags)); strings.Join(got, "|") != strings.Join(tags, "|") {
		t.Fatalf("expected join then parse to keep %v, got %v", tags, got)
	}
}

func TestCollectTagsSorted(t *testing.T) {
	t.Parallel()

	pages := []Page{{Tags: []string{"zeta", "alpha"}}, {Tags: []string{"alpha", "beta"}}}
	tags := CollectTags(pages)
	if strings.Join(tags, ",") != "alpha,beta,zeta" {
		t.Fatalf("unexpected tags %v", tags)
	}

	page := Page{Tags: []string{"alpha"}}
	if !page.HasTag(" ALPHA ") {
		t.Fatalf("expected HasTag to ignore case and whitespace")
	}
}

func TestSiteSettingsRoundTripAndDefaults(t *testing.T) {
	t.Parallel()

	defaults, err := DecodeSiteSettings(nil)
	if err != nil {
		t.Fatalf("DecodeSiteSettings returned error: %v", err)
	}
	if defaults.Theme != "Responsive" {
		t.Fatalf("expected default theme, got %q", defaults.Theme)
	}

	defaults.Theme = "Mediawiki"
	defaults.Installed = true
	row, err := EncodeSiteSettings(defaults)
	if err != nil {
		t.Fatalf("EncodeSiteSettings returned error: %v", err)
	}
	if row.ID != SiteConfigurationID {
		t.Fatalf("expected singleton id, got %s", row.ID)
	}

	decoded, err := DecodeSiteSettings(row)
	if err != nil {
		t.Fatalf("DecodeSiteSettings returned error: %v", err)
	}
	if decoded.Theme != "Mediawiki" || !decoded.Installed {
		t.Fatalf("unexpected decoded settings %+v", decoded)
	}

	types := decoded.AllowedFileTypesList()
	if len(types) != 6 || types[0] != "jpg" {
		t.Fatalf("unexpected allowed file types %v", types)
	}
}
