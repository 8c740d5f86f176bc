package jsoncodec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type testPayload struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := testPayload{UID: "d1", Name: "primary"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out testPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Fatalf("expected round trip to match, got %#v", out)
	}

	indented, err := MarshalIndent(in, "", "  ")
	if err != nil {
		t.Fatalf("marshal indent failed: %v", err)
	}
	if !strings.Contains(string(indented), "\n  \"uid\"") {
		t.Fatalf("expected indented output, got %s", string(indented))
	}
}

func TestEncodeAndDecode(t *testing.T) {
	buf := &bytes.Buffer{}
	payload := testPayload{UID: "e1", Name: "dark"}

	if err := Encode(buf, payload); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded testPayload
	if err := Decode(buf, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != payload {
		t.Fatalf("expected decoded payload to match, got %#v", decoded)
	}
}

func TestForEachLineSkipsBlankLines(t *testing.T) {
	input := "{\"uid\":\"a\"}\n\n   \n{\"uid\":\"b\"}\n"

	var uids []string
	err := ForEachLine(strings.NewReader(input), func(line []byte) error {
		var p testPayload
		if err := Unmarshal(line, &p); err != nil {
			return err
		}
		uids = append(uids, p.UID)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(uids) != 2 || uids[0] != "a" || uids[1] != "b" {
		t.Fatalf("unexpected lines: %v", uids)
	}
}

func TestForEachLineStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := ForEachLine(strings.NewReader("1\n2\n3\n"), func([]byte) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}
