package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trickleReader hands out at most one byte per Read.
type trickleReader struct {
	r io.Reader
}

func (t *trickleReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return t.r.Read(p[:1])
}

func rawFrame(payload string) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame
}

func collect(t *testing.T, r io.Reader) ([]Request, []error) {
	t.Helper()
	var msgs []Request
	var errs []error
	for msg, err := range Receive[Request](r) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, errs
}

func TestReceive_ConcatenatedFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Request{Action: ActionLogin, RequestID: "1", Username: "alice"}))
	require.NoError(t, Write(&buf, Request{Action: ActionListRooms, RequestID: "2"}))
	require.NoError(t, Write(&buf, Request{Action: ActionLogout, RequestID: "3"}))

	msgs, errs := collect(t, &buf)

	assert.Empty(t, errs)
	require.Len(t, msgs, 3)
	assert.Equal(t, "alice", msgs[0].Username)
	assert.Equal(t, ActionListRooms, msgs[1].Action)
	assert.Equal(t, "3", msgs[2].RequestID)
}

func TestReceive_PartialReads(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Request{Action: ActionUploadGame, GameName: "ttt", GameContent: "}{ not a boundary }{"}))
	require.NoError(t, Write(&buf, Request{Action: ActionListGames}))

	msgs, errs := collect(t, &trickleReader{r: &buf})

	assert.Empty(t, errs)
	require.Len(t, msgs, 2)
	assert.Equal(t, "}{ not a boundary }{", msgs[0].GameContent)
	assert.Equal(t, ActionListGames, msgs[1].Action)
}

func TestReceive_CorruptFrameIsSkipped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Request{Action: ActionRegister}))
	buf.Write(rawFrame(`{"action": "log`))
	require.NoError(t, Write(&buf, Request{Action: ActionLogin}))

	msgs, errs := collect(t, &buf)

	require.Len(t, msgs, 2)
	assert.Equal(t, ActionRegister, msgs[0].Action)
	assert.Equal(t, ActionLogin, msgs[1].Action)
	require.Len(t, errs, 1)
	var framingErr *FramingError
	assert.True(t, errors.As(errs[0], &framingErr))
}

func TestReceive_IncompleteFrameAtEOFEndsQuietly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Request{Action: ActionRegister}))
	full := rawFrame(`{"action":"login"}`)
	buf.Write(full[:len(full)-3])

	msgs, errs := collect(t, &buf)

	assert.Empty(t, errs)
	require.Len(t, msgs, 1)
}

func TestReceive_OversizedHeaderStops(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, MaxFrameSize+1)
	buf.Write(header)
	require.NoError(t, Write(&buf, Request{Action: ActionLogin}))

	msgs, errs := collect(t, &buf)

	assert.Empty(t, msgs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrFrameTooLarge)
}

func TestReceive_StopsWhenConsumerBreaks(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 5; i++ {
		require.NoError(t, Write(&buf, Request{Action: ActionListGames}))
	}

	count := 0
	for range Receive[Request](&buf) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestEncode_PushHasNoRequestID(t *testing.T) {
	frame, err := Encode(Reply{Status: StatusInvite, RoomName: "r2", Inviter: "alice"})
	require.NoError(t, err)

	payload := string(frame[HeaderSize:])
	assert.NotContains(t, payload, "request_id")
	assert.Contains(t, payload, `"inviter":"alice"`)
	assert.Equal(t, uint32(len(payload)), binary.BigEndian.Uint32(frame))
}

func TestEncode_EmptyCollectionsKeepTheirKeys(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		want  string
	}{
		{"players", Reply{Status: StatusSuccess, Username: "alice", Players: map[string]string{}}, `"players":{}`},
		{"rooms", Reply{Status: StatusSuccess, Rooms: map[string]RoomInfo{}}, `"rooms":{}`},
		{"games", Reply{Status: StatusSuccess, Games: []GameInfo{}}, `"games":[]`},
		{"game_content", Reply{Status: StatusSuccess, GameContent: String("")}, `"game_content":""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.reply)
			require.NoError(t, err)
			assert.Contains(t, string(frame[HeaderSize:]), tt.want)
		})
	}
}

func TestEncode_NilCollectionsAreOmitted(t *testing.T) {
	frame, err := Encode(Reply{Status: StatusError, Message: "nope"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"nope"}`, string(frame[HeaderSize:]))
}

func TestReply_DecodesWhatItEncodes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Reply{Status: StatusSuccess, RequestID: "1", Games: []GameInfo{}, GameContent: String("x")}))

	for msg, err := range Receive[Reply](&buf) {
		require.NoError(t, err)
		assert.Equal(t, "1", msg.RequestID)
		assert.Empty(t, msg.Games)
		require.NotNil(t, msg.GameContent)
		assert.Equal(t, "x", *msg.GameContent)
	}
}
