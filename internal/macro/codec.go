package macro

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Encode renders an event as one .mcr line (without the trailing newline).
//
// Format: timestamp;CODE[;key=value]*. Scroll events keep only the sign of the
// wheel delta, and button codes outside 1..3 are written as "unknown".
func Encode(e Event) string {
	parts := []string{strconv.FormatFloat(e.Timestamp, 'f', 6, 64), e.Kind.String()}

	switch p := e.Payload.(type) {
	case Key:
		if p.Name != "" {
			parts = append(parts, "char="+p.Name)
		}
	case Move:
		if p.Pos != nil {
			parts = append(parts, "x="+strconv.Itoa(p.Pos.X), "y="+strconv.Itoa(p.Pos.Y))
		}
	case Button:
		if p.Pos != nil {
			parts = append(parts,
				"button="+buttonName(p.Code),
				"x="+strconv.Itoa(p.Pos.X),
				"y="+strconv.Itoa(p.Pos.Y))
		}
	case Scroll:
		if p.Pos != nil {
			dy := -1
			if p.Delta > 0 {
				dy = 1
			}
			parts = append(parts,
				"dx=0",
				"dy="+strconv.Itoa(dy),
				"x="+strconv.Itoa(p.Pos.X),
				"y="+strconv.Itoa(p.Pos.Y))
		}
	}

	return strings.Join(parts, ";")
}

// Decode parses one .mcr line. It returns false for blank lines, comments,
// malformed timestamps and unknown event codes; none of these are errors.
func Decode(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Event{}, false
	}

	fields := strings.Split(line, ";")
	if len(fields) < 2 {
		return Event{}, false
	}

	ts, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) || ts < 0 {
		return Event{}, false
	}

	kind, ok := ParseKind(fields[1])
	if !ok {
		return Event{}, false
	}

	var (
		name       string
		button     int
		x, y, dy   int
		hasX, hasY bool
		extra      map[string]string
	)

	rest := fields[2:]
	for i := 0; i < len(rest); i++ {
		key, value, found := strings.Cut(rest[i], "=")
		if !found {
			continue
		}
		switch key {
		case "char":
			// "char=;" splits into an empty value followed by an empty field
			if value == "" && i+1 < len(rest) && rest[i+1] == "" {
				value = ";"
				i++
			}
			name = value
		case "x":
			x, hasX = parseInt(value)
		case "y":
			y, hasY = parseInt(value)
		case "dx":
			// always written as 0
		case "dy":
			dy, _ = parseInt(value)
		case "button":
			button = parseButtonName(value)
		default:
			if extra == nil {
				extra = make(map[string]string)
			}
			extra[key] = value
		}
	}

	var pos *Point
	if hasX && hasY {
		pos = &Point{X: x, Y: y}
	}

	e := Event{Timestamp: ts, Kind: kind, Extra: extra}
	switch kind {
	case KeyDown, KeyUp:
		e.Payload = Key{Name: name}
	case MouseMove:
		e.Payload = Move{Pos: pos}
	case MouseDown, MouseUp:
		e.Payload = Button{Code: button, Pos: pos}
	case MouseScroll:
		e.Payload = Scroll{Delta: dy, Pos: pos}
	}
	return e, true
}

func parseInt(s string) (int, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// Describe returns a one-line human readable summary for logs
func Describe(e Event) string {
	pos, hasPos := e.Position()
	at := func(prefix string) string {
		if !hasPos {
			return prefix
		}
		return fmt.Sprintf("%s: (%d, %d)", prefix, pos.X, pos.Y)
	}

	switch e.Kind {
	case KeyDown, KeyUp:
		label := "Key Down"
		if e.Kind == KeyUp {
			label = "Key Up"
		}
		if name, ok := e.KeyName(); ok {
			return label + ": " + name
		}
		return label
	case MouseMove:
		return at("Mouse Move")
	case MouseDown, MouseUp:
		code := ButtonUnknown
		if b, ok := e.Payload.(Button); ok {
			code = b.Code
		}
		label := buttonLabel(code) + " Click Down"
		if e.Kind == MouseUp {
			label = buttonLabel(code) + " Click Up"
		}
		return at(label)
	case MouseScroll:
		dir := "Down"
		if s, ok := e.Payload.(Scroll); ok && s.Delta > 0 {
			dir = "Up"
		}
		return at("Scroll " + dir)
	}
	return e.Kind.String()
}

// WriteTimeline writes one encoded line per event
func WriteTimeline(w io.Writer, events []Event) error {
	bw := bufio.NewWriter(w)
	for _, e := range events {
		if _, err := bw.WriteString(Encode(e)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTimeline decodes every line of r, silently skipping lines that do not
// decode. Only read errors are returned.
func ReadTimeline(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if e, ok := Decode(sc.Text()); ok {
			events = append(events, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// SortTimeline orders events by timestamp, keeping the relative order of ties
func SortTimeline(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
}
