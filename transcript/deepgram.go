package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"nhooyr.io/websocket"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	deepgramModel    = "nova-3"
)

// Deepgram streams PCM16 to the Deepgram live endpoint and yields interim
// and final alternatives as Results.
type Deepgram struct {
	apiKey     string
	sampleRate int
	language   string
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{apiKey: apiKey, sampleRate: 16000, language: "en"}
}

func (d *Deepgram) SetLanguage(lang string) { d.language = lang }

func (d *Deepgram) Start(ctx context.Context) (Stream, error) {
	endpoint, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return nil, err
	}
	q := endpoint.Query()
	q.Set("model", deepgramModel)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", d.sampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	if d.language != "" {
		q.Set("language", d.language)
	}
	endpoint.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	streamCtx, cancel := context.WithCancel(ctx)
	conn, _, err := websocket.Dial(streamCtx, endpoint.String(), &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("recognition dial: %w", err)
	}

	s := &deepgramStream{
		conn:    conn,
		ctx:     streamCtx,
		cancel:  cancel,
		results: make(chan Result, 16),
	}
	go s.readLoop()
	return s, nil
}

type deepgramResponse struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type deepgramStream struct {
	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	results chan Result
}

func (s *deepgramStream) Send(pcm []byte) error {
	return s.conn.Write(s.ctx, websocket.MessageBinary, pcm)
}

func (s *deepgramStream) Results() <-chan Result {
	return s.results
}

func (s *deepgramStream) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

func (s *deepgramStream) readLoop() {
	defer close(s.results)
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			return
		}
		var resp deepgramResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		text := ""
		if len(resp.Channel.Alternatives) > 0 {
			text = strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
		}
		if text == "" {
			continue
		}
		s.results <- Result{
			Text:  text,
			Final: resp.IsFinal || resp.SpeechFinal || resp.FromFinalize,
		}
	}
}
