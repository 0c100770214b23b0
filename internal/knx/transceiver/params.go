package transceiver

import "time"

// state is the driver's internal receive/send state, mirroring the C
// driver's tpuart_state_t / ncn5120_state_t enums.
type state int

const (
	stateIdle state = iota
	stateSending
	stateReceiving
	stateWaitForResponse
	stateCompleted
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSending:
		return "sending"
	case stateReceiving:
		return "receiving"
	case stateWaitForResponse:
		return "wait_for_response"
	case stateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventTelegram reports a fully received, CRC/checksum-validated
	// telegram.
	EventTelegram EventKind = iota
	// EventTelegramIncomplete reports that the end-of-telegram gap timer
	// fired before a telegram's declared length was reached; Telegram
	// holds whatever bytes were collected.
	EventTelegramIncomplete
	// EventStateIndication reports the raw byte returned by a State
	// request.
	EventStateIndication
	// EventSystemStateIndication and EventSave mirror the two remaining
	// event kinds the reference drivers raise (an unsolicited system-
	// state push, and the SAVE pin's bus-voltage-drop warning). Neither
	// is driven by this package: both originate from board-level
	// GPIO/interrupt wiring, which is out of scope here the same way the
	// rest of the HAL is (see the board bring-up exclusion). The kinds
	// are declared so a board-specific caller can feed events of these
	// kinds into the same Events consumer.
	EventSystemStateIndication
	EventSave
)

// Event is delivered to a Driver's Events channel. Exactly one of
// Telegram/StateByte is meaningful, depending on Kind.
type Event struct {
	Kind      EventKind
	Telegram  []byte
	StateByte byte
}

// commands holds the chip-specific command/service byte values. Both
// TPUART and NCN5120 share the L_DATA_REQUEST/L_DATA_CONFIRM framing and
// the U_L_DATA_CONTINUE/END send protocol; they differ in a handful of
// values (SetAddress in particular) and NCN5120 adds services this
// driver does not use (stop mode, offset sends, register access).
type commands struct {
	LDataConfirm     byte
	LDataRequest     byte
	LExtDataRequest  byte
	LPollDataRequest byte

	ActivateBusmon byte
	ActivateBusy   byte
	ActivateCRC    byte
	DataContinue   byte
	DataEnd        byte
	ResetCounter   byte
	ProductIDReq   byte
	ResetBusyMode  byte
	ResetRequest   byte
	ResetResponse  byte // match via MATCHES: (b & ResetResponse) == ResetResponse
	SetAddress     byte
	StateRequest   byte
	StateResponse  byte // match via MATCHES
}

// matches reproduces the C driver's MATCHES macro: a response byte
// matches a service mask when all the mask's bits are set in the byte.
func matches(b, mask byte) bool {
	return b&mask == mask
}

// Params carries everything that differs between TPUART and NCN5120:
// timeouts, CRC seed, and the command table. Driver itself is otherwise
// chip-agnostic.
type Params struct {
	Name string

	Commands commands

	// EndOfTelegram is the inter-byte gap that, once elapsed with no new
	// byte arriving, completes the telegram currently being received.
	EndOfTelegram time.Duration

	// WaitForAck bounds the per-byte wait while draining a send's
	// echo+confirm response.
	WaitForAck time.Duration

	// WaitForResponse bounds waiting for a host command's response
	// (reset, state).
	WaitForResponse time.Duration

	// CRCSeed initialises the rolling CRC16-CCITT checksum used to
	// early-complete a telegram once its trailing two bytes are present.
	CRCSeed uint16

	// CRCEnabled reports whether U_ACTIVATE_CRC is in effect, which adds
	// two trailing CRC bytes to both receive framing and Send's expected
	// echo length.
	CRCEnabled bool

	// MaxSend is the largest telegram this variant's Send accepts in one
	// call (TPUART: 64 bytes; NCN5120 can exceed this via an offset
	// continuation this driver does not implement).
	MaxSend int

	// PollMin/PollMax bound a poll-data telegram's total length for
	// receive framing. The original TPUART driver itself passes (6, 6)
	// to its receive-start call, one byte short of the protocol-level
	// poll telegram length (7, both min and max, per the telegram codec's
	// own PollLen). That looks like a pre-existing off-by-one in the C
	// driver rather than an intentional convention, so both variants here
	// use the protocol-correct (7, 7) to stay consistent with the
	// telegram codec this driver feeds.
	PollMin, PollMax int
}
