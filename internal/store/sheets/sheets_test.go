package sheets

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/fitstash/reelbot/internal/store"
)

// fakeSheet emulates the spreadsheet values API over three columns.
type fakeSheet struct {
	rows     [][]any // title, url, tags
	appended [][]any
}

func (f *fakeSheet) handler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, err := url.PathUnescape(r.URL.Path)
		if err != nil {
			t.Fatalf("bad request path: %v", err)
		}
		idx := strings.Index(path, "/values/")
		if idx < 0 {
			http.NotFound(w, r)
			return
		}
		rangeRef := path[idx+len("/values/"):]

		if strings.HasSuffix(rangeRef, ":append") {
			body, _ := io.ReadAll(r.Body)
			var vr sheetsapi.ValueRange
			if err := json.Unmarshal(body, &vr); err != nil {
				t.Fatalf("bad append body: %v", err)
			}
			f.appended = append(f.appended, vr.Values...)
			f.rows = append(f.rows, vr.Values...)
			_ = json.NewEncoder(w).Encode(&sheetsapi.AppendValuesResponse{})
			return
		}

		var values [][]any
		switch {
		case strings.HasSuffix(rangeRef, recordRange):
			values = f.rows
		case strings.HasSuffix(rangeRef, urlRange):
			for _, row := range f.rows {
				values = append(values, []any{row[1]})
			}
		case strings.HasSuffix(rangeRef, tagRange):
			for _, row := range f.rows {
				values = append(values, []any{row[2]})
			}
		default:
			t.Fatalf("unexpected range: %s", rangeRef)
		}
		_ = json.NewEncoder(w).Encode(&sheetsapi.ValueRange{Values: values})
	})
}

func testStore(t *testing.T, f *fakeSheet) *Store {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	svc, err := sheetsapi.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatal(err)
	}
	return NewWithService(svc, "sheet-id", "Sheet1").WithRand(rand.New(rand.NewPCG(3, 3)))
}

func TestAllTags_NormalizedAndDeduped(t *testing.T) {
	f := &fakeSheet{rows: [][]any{
		{"a", "u1", "Strength, mobility"},
		{"b", "u2", "strength"},
		{"c", "u3", "cardio"},
	}}
	s := testStore(t, f)

	got, err := s.AllTags()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"strength", "mobility", "cardio"}
	if len(got) != len(want) {
		t.Fatalf("unexpected tags: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tag %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestVideosByTag_SubstringAndLimit(t *testing.T) {
	f := &fakeSheet{rows: [][]any{
		{"a", "u1", "strength,mobility"},
		{"b", "u2", "Strength"},
		{"c", "u3", "cardio"},
	}}
	s := testStore(t, f)

	got, err := s.VideosByTag("strength", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
	for _, v := range got {
		if !strings.Contains(strings.ToLower(v.Tags), "strength") {
			t.Fatalf("non-matching record: %#v", v)
		}
	}

	one, err := s.VideosByTag("strength", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 {
		t.Fatalf("expected exactly 1 record, got %v", one)
	}
}

func TestAddVideo_AppendsRow(t *testing.T) {
	f := &fakeSheet{}
	s := testStore(t, f)

	if err := s.AddVideo(store.Video{Title: "Leg Day", URL: "u9", Tags: "strength"}); err != nil {
		t.Fatal(err)
	}
	if len(f.appended) != 1 {
		t.Fatalf("expected one appended row, got %v", f.appended)
	}
	row := f.appended[0]
	if len(row) != 3 || row[0] != "Leg Day" || row[1] != "u9" || row[2] != "strength" {
		t.Fatalf("unexpected appended row: %v", row)
	}
}

func TestIsDuplicateURL_ExactMatch(t *testing.T) {
	f := &fakeSheet{rows: [][]any{{"a", "https://instagram.com/reel/x", "strength"}}}
	s := testStore(t, f)

	dup, err := s.IsDuplicateURL("https://instagram.com/reel/x")
	if err != nil {
		t.Fatal(err)
	}
	if !dup {
		t.Fatal("expected duplicate")
	}

	dup, err = s.IsDuplicateURL("https://instagram.com/reel/X")
	if err != nil {
		t.Fatal(err)
	}
	if dup {
		t.Fatal("duplicate check must be exact, case-sensitive")
	}
}
