// ============================================================================
// REST DEPTH SNAPSHOT BOOTSTRAP
// ============================================================================
//
// Cold-path client fetching the order book snapshot that seeds the local
// book before diff replay starts. Runs once per (re)connect, so this path
// favors robustness over allocation discipline: plain net/http with sonnet
// decoding the JSON body.

package snapshot

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/jaycampbellluo/binance-l3-est/constants"
)

// Book is the venue's depth snapshot: the sequence floor plus full bid and
// ask ladders as decimal strings, best levels first.
type Book struct {
	LastUpdateID uint64      `json:"lastUpdateId"`
	EventTime    int64       `json:"E"`
	TradeTime    int64       `json:"T"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

var client = &http.Client{
	Timeout: 10 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:          2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		ForceAttemptHTTP2:     true,
		Proxy:                 http.ProxyFromEnvironment,
	},
}

// baseURL is swapped out by tests; production always talks to the venue.
var baseURL = constants.RestBase

// Fetch retrieves the current depth snapshot for a (lowercase stream)
// symbol. The REST API wants the symbol uppercased.
func Fetch(symbol string) (*Book, error) {
	url := baseURL + constants.SnapshotPath + strings.ToUpper(symbol)

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxSnapshotBody))
	if err != nil {
		return nil, err
	}

	var book Book
	if err := sonnet.Unmarshal(body, &book); err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	if book.LastUpdateID == 0 {
		return nil, fmt.Errorf("snapshot missing lastUpdateId")
	}
	return &book, nil
}
