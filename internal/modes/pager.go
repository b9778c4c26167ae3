package modes

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/bus"
	"github.com/valentinerf/valentine-rf/internal/decoder"
	"github.com/valentinerf/valentine-rf/internal/rferr"
	"github.com/valentinerf/valentine-rf/internal/store"
)

// PagerMessage is one decoded POCSAG/FLEX page.
type PagerMessage struct {
	Key       string
	Protocol  string
	Address   string
	Function  string
	Text      string
	Seen      time.Time `hash:"ignore"`
}

func (p PagerMessage) LastSeen() time.Time { return p.Seen }

const pagerTTL = 10 * time.Minute

// MergePagerMessage does not overlay fields: each page is stored under its
// own protocol:address:sequence key, and the newest decode always wins.
func MergePagerMessage(_, partial PagerMessage, now time.Time) PagerMessage {
	partial.Seen = now
	return partial
}

// multimonLineRe matches multimon-ng's tagged text output, e.g.:
// POCSAG512: Address: 1234567  Function: 3  Alpha:   Hello world
var multimonLineRe = regexp.MustCompile(`^(POCSAG\d+|FLEX):\s*Address:\s*(\S+)\s+Function:\s*(\S+)\s+\w*:?\s*(.*)$`)

// PagerMode drives multimon-ng, which emits tagged text lines on stdout for
// each decoded page (spec §6).
type PagerMode struct {
	Store *store.Store[PagerMessage]
	bus   *bus.Bus
}

func NewPagerMode() *PagerMode {
	return &PagerMode{
		Store: store.New[PagerMessage](pagerTTL, MergePagerMessage),
		bus:   bus.New(),
	}
}

func (m *PagerMode) ID() string { return "pager" }

func (m *PagerMode) RequiredTools() []decoder.ToolRequirement {
	return []decoder.ToolRequirement{{Name: "multimon-ng"}}
}

func (m *PagerMode) RequiredDevices() []string { return []string{"rtlsdr"} }

func (m *PagerMode) ValidateParams(params map[string]any) error {
	return nil
}

func (m *PagerMode) BuildArgv(toolPaths []string, devices []arbiter.Device, params map[string]any) ([][]string, error) {
	if len(devices) != 1 {
		return nil, rferr.New(rferr.Internal, "pager requires exactly one device")
	}
	argv := []string{toolPaths[0], "-a", "POCSAG512", "-a", "POCSAG1200", "-t", "rtl_sdr", "-"}
	return [][]string{argv}, nil
}

func (m *PagerMode) Bus() *bus.Bus { return m.bus }

func (m *PagerMode) ParseStream(ctx context.Context, r io.Reader, onMessage, onMalformed func()) error {
	scanner := bufio.NewScanner(r)
	seq := 0
	for scanner.Scan() {
		rec, ok := parseMultimonLine(scanner.Text())
		if !ok {
			onMalformed()
			continue
		}
		seq++
		rec.Key = rec.Protocol + ":" + rec.Address + ":" + strconv.Itoa(seq)
		merged := m.Store.Upsert(rec.Key, rec, time.Now())
		m.bus.Publish(bus.Event{Type: "page", Data: merged})
		onMessage()
	}
	return scanner.Err()
}

func parseMultimonLine(line string) (PagerMessage, bool) {
	matches := multimonLineRe.FindStringSubmatch(line)
	if matches == nil {
		return PagerMessage{}, false
	}
	return PagerMessage{
		Protocol: matches[1],
		Address:  matches[2],
		Function: matches[3],
		Text:     matches[4],
	}, true
}
