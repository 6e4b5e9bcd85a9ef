package parser

import (
	"testing"
)

const depthFrame = `{"e":"depthUpdate","E":1755432100123,"T":1755432100119,"s":"DOGEUSDT","U":390497796,"u":390497878,"pu":390497794,"b":[["0.2271500","52000"],["0.2271400","131072"]],"a":[["0.2271600","8400"],["0.2271700","0"]]}`

type level struct {
	price uint64
	qty   uint64
}

func collect(t *testing.T, raw []byte, pd, qd int) []level {
	t.Helper()
	var out []level
	if !ForEachLevel(raw, pd, qd, func(p, q uint64) {
		out = append(out, level{p, q})
	}) {
		t.Fatalf("level array failed to parse: %q", raw)
	}
	return out
}

func TestParseDepthFields(t *testing.T) {
	v, ok := ParseDepth([]byte(depthFrame))
	if !ok {
		t.Fatal("frame rejected")
	}
	if string(v.Symbol) != "DOGEUSDT" {
		t.Fatalf("symbol = %q", v.Symbol)
	}
	if v.EventTime != 1755432100123 || v.TradeTime != 1755432100119 {
		t.Fatalf("timestamps = %d/%d", v.EventTime, v.TradeTime)
	}
	if v.FirstID != 390497796 || v.FinalID != 390497878 || v.PrevID != 390497794 {
		t.Fatalf("ids = %d/%d/%d", v.FirstID, v.FinalID, v.PrevID)
	}

	bids := collect(t, v.Bids, 7, 0)
	if len(bids) != 2 {
		t.Fatalf("bid count = %d", len(bids))
	}
	if bids[0].price != 2271500 || bids[0].qty != 52000 {
		t.Fatalf("bid[0] = %+v", bids[0])
	}

	asks := collect(t, v.Asks, 7, 0)
	if len(asks) != 2 {
		t.Fatalf("ask count = %d", len(asks))
	}
	if asks[1].price != 2271700 || asks[1].qty != 0 {
		t.Fatalf("ask[1] = %+v", asks[1])
	}
}

func TestParseDepthEmptySides(t *testing.T) {
	frame := `{"e":"depthUpdate","E":1,"T":1,"s":"DOGEUSDT","U":10,"u":10,"pu":9,"b":[],"a":[]}`
	v, ok := ParseDepth([]byte(frame))
	if !ok {
		t.Fatal("frame rejected")
	}
	if len(v.Bids) != 0 || len(v.Asks) != 0 {
		t.Fatalf("expected empty sides, got %q / %q", v.Bids, v.Asks)
	}
	n := 0
	if !ForEachLevel(v.Bids, 7, 0, func(uint64, uint64) { n++ }) || n != 0 {
		t.Fatalf("empty side visited %d levels", n)
	}
}

func TestParseDepthRejectsForeignEvent(t *testing.T) {
	frame := `{"e":"bookTicker","E":1,"s":"DOGEUSDT","u":400,"b":"0.2271","B":"10","a":"0.2272","A":"5"}`
	if _, ok := ParseDepth([]byte(frame)); ok {
		t.Fatal("accepted a non-depth event")
	}
}

func TestParseDepthRejectsTruncated(t *testing.T) {
	full := []byte(depthFrame)
	for _, cut := range []int{10, 40, 100, len(full) - 3} {
		if _, ok := ParseDepth(full[:cut]); ok {
			t.Fatalf("accepted frame truncated at %d", cut)
		}
	}
}

func TestParseDepthRejectsIDRegression(t *testing.T) {
	frame := `{"e":"depthUpdate","E":1,"T":1,"s":"DOGEUSDT","U":20,"u":10,"pu":9,"b":[],"a":[]}`
	if _, ok := ParseDepth([]byte(frame)); ok {
		t.Fatal("accepted event with final ID below first ID")
	}
}

func TestForEachLevelScaling(t *testing.T) {
	raw := []byte(`["0.2271500","52000.123"]`)
	got := collect(t, raw, 7, 3)
	if len(got) != 1 {
		t.Fatalf("count = %d", len(got))
	}
	if got[0].price != 2271500 || got[0].qty != 52000123 {
		t.Fatalf("level = %+v", got[0])
	}
}

func TestForEachLevelMalformed(t *testing.T) {
	for _, raw := range []string{
		`["0.2271500"]`,
		`["0.2271500",52000]`,
		`["","1"]`,
		`["0.1","2`,
	} {
		if ForEachLevelOK(raw) {
			t.Fatalf("accepted malformed pair %q", raw)
		}
	}
}

func ForEachLevelOK(raw string) bool {
	return ForEachLevel([]byte(raw), 7, 0, func(uint64, uint64) {})
}

func BenchmarkParseDepth(b *testing.B) {
	frame := []byte(depthFrame)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, ok := ParseDepth(frame); !ok {
			b.Fatal("frame rejected")
		}
	}
}

func BenchmarkForEachLevel(b *testing.B) {
	v, _ := ParseDepth([]byte(depthFrame))
	var sink uint64
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ForEachLevel(v.Bids, 7, 0, func(p, q uint64) { sink += p + q })
	}
	_ = sink
}
