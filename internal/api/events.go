package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/char5742/touchsampler/internal/motion"
)

// eventPointer は配信用のポインター表現
type eventPointer struct {
	ID        int32   `json:"id"`
	Tool      string  `json:"tool"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Resampled bool    `json:"resampled"`
}

// eventFrame は配信用の1サンプル表現
type eventFrame struct {
	EventTime int64          `json:"event_time_ns"`
	DeviceID  int32          `json:"device_id"`
	Pointers  []eventPointer `json:"pointers"`
}

// Broadcaster は合成結果をWebSocketクライアントへ配信する構造体
type Broadcaster struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
	mutex    sync.Mutex
	clients  map[*websocket.Conn]struct{}
}

// NewBroadcaster は新しいBroadcasterを作成する
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// ダッシュボードはローカルで開く想定
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Handle はWebSocket接続を受け付けるHTTPハンドラ
func (b *Broadcaster) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn().Err(err).Msg("WebSocketのアップグレードに失敗しました")
		return
	}

	b.mutex.Lock()
	b.clients[conn] = struct{}{}
	count := len(b.clients)
	b.mutex.Unlock()
	b.log.Info().Int("clients", count).Msg("配信クライアントが接続しました")

	// 切断検出のための読み捨てループ
	go func() {
		defer b.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastEvent はイベントの最新サンプルを全クライアントへ配信する
func (b *Broadcaster) BroadcastEvent(ev *motion.MotionEvent) {
	if ev.SampleCount() == 0 {
		return
	}

	last := ev.SampleCount() - 1
	frame := eventFrame{
		EventTime: int64(ev.HistoricalEventTime(last)),
		DeviceID:  ev.DeviceID,
	}
	for i := 0; i < ev.PointerCount(); i++ {
		props := ev.PointerProperties(i)
		coords := ev.HistoricalPointerCoords(last, i)
		frame.Pointers = append(frame.Pointers, eventPointer{
			ID:        props.ID,
			Tool:      props.ToolType.String(),
			X:         coords.X(),
			Y:         coords.Y(),
			Resampled: coords.IsResampled,
		})
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	for conn := range b.clients {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			// 書けないクライアントは切り離す
			conn.Close()
			delete(b.clients, conn)
		}
	}
}

// drop はクライアントを登録から外して閉じる
func (b *Broadcaster) drop(conn *websocket.Conn) {
	b.mutex.Lock()
	if _, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
	}
	b.mutex.Unlock()
	conn.Close()
}

// ClientCount は接続中のクライアント数を返す
func (b *Broadcaster) ClientCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.clients)
}
