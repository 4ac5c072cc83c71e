package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	v1 "github.com/vmunix/andrate/internal/api/v1"
	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/query"
	"github.com/vmunix/andrate/internal/session"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Interactive search as you type",
	Long: `Open a live search surface. Each line typed is the new query text;
results print once the surface settles.

Lines starting with ':' are commands:
  :kind <all|anime|tv|movie>   switch the surface kind
  :page <n>                    load a discovery page
  :min <rating>                hide items rated below this
  :sort <popularity|rating|title>
  :clear                       clear the query`,
	Args: cobra.NoArgs,
	RunE: runLiveCmd,
}

func init() {
	rootCmd.AddCommand(liveCmd)
	liveCmd.Flags().StringP("kind", "k", "", "Initial surface kind (default all)")
}

// liveSnapshot is the part of a surface snapshot the CLI renders.
type liveSnapshot struct {
	State   query.State        `json:"state"`
	Phase   query.Phase        `json:"phase"`
	Mode    query.Mode         `json:"mode"`
	Page    int                `json:"page"`
	Filter  catalog.FilterSort `json:"filter"`
	Items   []catalog.Item     `json:"items"`
	Sources []SourceResponse   `json:"sources"`
	Stats   catalog.Stats      `json:"stats"`
	Settled bool               `json:"settled"`
}

type liveMessage struct {
	Type      string        `json:"type"`
	SurfaceID string        `json:"surface_id"`
	Snapshot  *liveSnapshot `json:"snapshot,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func runLiveCmd(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return runLive(ctx, newClient(), kind, cmd.InOrStdin(), cmd.OutOrStdout())
}

// runLive drives one surface until in is exhausted, the server closes the
// connection or ctx ends.
func runLive(ctx context.Context, client *Client, kind string, in io.Reader, out io.Writer) error {
	wsURL, err := client.surfaceURL(kind)
	if err != nil {
		return err
	}
	header := http.Header{}
	if client.userID > 0 {
		header.Set(session.UserHeader, strconv.FormatInt(client.userID, 10))
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer func() { _ = conn.Close() }()

	out = &lockedWriter{w: out}
	settled := make(chan *liveSnapshot, 16)
	readErr := make(chan error, 1)
	go func() { readErr <- readLive(conn, out, settled) }()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	var filter liveFilter
	var lastText *string

	for {
		select {
		case <-ctx.Done():
			return closeLive(conn, readErr)
		case err := <-readErr:
			return err
		case line, ok := <-lines:
			if !ok {
				awaitSettled(ctx, settled, lastText)
				return closeLive(conn, readErr)
			}
			msg, err := filter.parse(line)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			if msg.Type == v1.MessageInput {
				lastText = &msg.Text
			}
		}
	}
}

// awaitSettled waits for the results of the last input line so piped input
// prints its answer before the connection closes.
func awaitSettled(ctx context.Context, settled <-chan *liveSnapshot, text *string) {
	if text == nil {
		return
	}
	timeout := time.After(10 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout:
			return
		case snap := <-settled:
			if strings.TrimSpace(snap.State.Text) == strings.TrimSpace(*text) {
				return
			}
		}
	}
}

// closeLive sends a close frame and waits for the reader to see the reply.
func closeLive(conn *websocket.Conn, readErr <-chan error) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		return nil
	}
	select {
	case err := <-readErr:
		return err
	case <-time.After(2 * time.Second):
		return nil
	}
}

func readLive(conn *websocket.Conn, out io.Writer, settled chan<- *liveSnapshot) error {
	var last string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("surface: %w", err)
		}
		var msg liveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		switch msg.Type {
		case v1.MessageError:
			fmt.Fprintf(out, "! %s\n", msg.Error)
		case v1.MessageSnapshot:
			snap := msg.Snapshot
			if snap == nil || !snap.Settled {
				continue
			}
			key := fmt.Sprintf("%s|%s|%d|%v|%s", snap.State.Kind, snap.State.Text, snap.Page, snap.Filter.MinRating, snap.Filter.SortBy)
			if key == last {
				continue
			}
			last = key
			printLiveSnapshot(out, snap)
			select {
			case settled <- snap:
			default:
			}
		}
	}
}

func printLiveSnapshot(w io.Writer, snap *liveSnapshot) {
	header := "discover " + string(snap.State.Kind)
	if snap.Mode == query.ModeSearch {
		header = fmt.Sprintf("search %s %q", snap.State.Kind, snap.State.Text)
	}
	if snap.Page > 1 {
		header += fmt.Sprintf(" page %d", snap.Page)
	}
	fmt.Fprintf(w, "== %s ==\n", header)
	printResults(w, &ResultsResponse{Items: snap.Items, Sources: snap.Sources, Stats: snap.Stats})
}

// liveFilter remembers the filter so each :min or :sort resends both halves.
type liveFilter struct {
	minRating float64
	sortBy    string
}

// parse turns one input line into a surface message.
func (f *liveFilter) parse(line string) (v1.ClientMessage, error) {
	if !strings.HasPrefix(line, ":") {
		return v1.ClientMessage{Type: v1.MessageInput, Text: line}, nil
	}
	fields := strings.Fields(strings.TrimPrefix(line, ":"))
	if len(fields) == 0 {
		return v1.ClientMessage{}, errors.New("empty command")
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case "clear":
		return v1.ClientMessage{Type: v1.MessageClear}, nil
	case "kind":
		return v1.ClientMessage{Type: v1.MessageKind, Kind: arg}, nil
	case "page":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return v1.ClientMessage{}, errors.New("page must be a positive number")
		}
		return v1.ClientMessage{Type: v1.MessagePage, Page: n}, nil
	case "min":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil || v < 0 || v > 10 {
			return v1.ClientMessage{}, errors.New("min must be a number from 0 to 10")
		}
		f.minRating = v
	case "sort":
		f.sortBy = arg
	default:
		return v1.ClientMessage{}, fmt.Errorf("unknown command %q", fields[0])
	}
	return v1.ClientMessage{Type: v1.MessageFilter, MinRating: f.minRating, SortBy: f.sortBy}, nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
