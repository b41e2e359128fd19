package types

// ClientMessage represents a frontend (client) pgwire message.
type ClientMessage byte

// ServerMessage represents a backend (server) pgwire message.
type ServerMessage byte

// DescribeMessage represents a describe message target.
type DescribeMessage byte

// Version represents a protocol version or special request code announced
// inside a startup packet.
type Version uint32

// TxStatus represents the backend transaction status reported inside a
// ReadyForQuery message.
type TxStatus byte

// https://www.postgresql.org/docs/current/protocol-message-formats.html
const (
	ClientBind        ClientMessage = 'B'
	ClientClose       ClientMessage = 'C'
	ClientCopyData    ClientMessage = 'd'
	ClientCopyDone    ClientMessage = 'c'
	ClientCopyFail    ClientMessage = 'f'
	ClientDescribe    ClientMessage = 'D'
	ClientExecute     ClientMessage = 'E'
	ClientFlush       ClientMessage = 'H'
	ClientParse       ClientMessage = 'P'
	ClientPassword    ClientMessage = 'p'
	ClientSimpleQuery ClientMessage = 'Q'
	ClientSync        ClientMessage = 'S'
	ClientTerminate   ClientMessage = 'X'

	ServerAuth                 ServerMessage = 'R'
	ServerBackendKeyData       ServerMessage = 'K'
	ServerBindComplete         ServerMessage = '2'
	ServerCloseComplete        ServerMessage = '3'
	ServerCommandComplete      ServerMessage = 'C'
	ServerCopyBothResponse     ServerMessage = 'W'
	ServerCopyData             ServerMessage = 'd'
	ServerCopyDone             ServerMessage = 'c'
	ServerCopyInResponse       ServerMessage = 'G'
	ServerCopyOutResponse      ServerMessage = 'H'
	ServerDataRow              ServerMessage = 'D'
	ServerEmptyQuery           ServerMessage = 'I'
	ServerErrorResponse        ServerMessage = 'E'
	ServerNoData               ServerMessage = 'n'
	ServerNoticeResponse       ServerMessage = 'N'
	ServerNotificationResponse ServerMessage = 'A'
	ServerParameterDescription ServerMessage = 't'
	ServerParameterStatus      ServerMessage = 'S'
	ServerParseComplete        ServerMessage = '1'
	ServerPortalSuspended      ServerMessage = 's'
	ServerReady                ServerMessage = 'Z'
	ServerRowDescription       ServerMessage = 'T'

	DescribePortal    DescribeMessage = 'P'
	DescribeStatement DescribeMessage = 'S'
)

// Version30 is the only protocol version spoken by the engine. The remaining
// values are special request codes which share the version slot of the
// startup packet.
const (
	Version30         Version = 196608
	VersionCancel     Version = 80877102
	VersionSSLRequest Version = 80877103
)

// Transaction statuses reported inside a ReadyForQuery message.
const (
	TxIdle   TxStatus = 'I'
	TxActive TxStatus = 'T'
	TxFailed TxStatus = 'E'
)

func (m ClientMessage) String() string {
	switch m {
	case ClientBind:
		return "Bind"
	case ClientClose:
		return "Close"
	case ClientCopyData:
		return "CopyData"
	case ClientCopyDone:
		return "CopyDone"
	case ClientCopyFail:
		return "CopyFail"
	case ClientDescribe:
		return "Describe"
	case ClientExecute:
		return "Execute"
	case ClientFlush:
		return "Flush"
	case ClientParse:
		return "Parse"
	case ClientPassword:
		return "Password"
	case ClientSimpleQuery:
		return "SimpleQuery"
	case ClientSync:
		return "Sync"
	case ClientTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}

func (m ServerMessage) String() string {
	switch m {
	case ServerAuth:
		return "Auth"
	case ServerBackendKeyData:
		return "BackendKeyData"
	case ServerBindComplete:
		return "BindComplete"
	case ServerCloseComplete:
		return "CloseComplete"
	case ServerCommandComplete:
		return "CommandComplete"
	case ServerCopyBothResponse:
		return "CopyBothResponse"
	case ServerCopyData:
		return "CopyData"
	case ServerCopyDone:
		return "CopyDone"
	case ServerCopyInResponse:
		return "CopyInResponse"
	case ServerCopyOutResponse:
		return "CopyOutResponse"
	case ServerDataRow:
		return "DataRow"
	case ServerEmptyQuery:
		return "EmptyQuery"
	case ServerErrorResponse:
		return "ErrorResponse"
	case ServerNoData:
		return "NoData"
	case ServerNoticeResponse:
		return "NoticeResponse"
	case ServerNotificationResponse:
		return "NotificationResponse"
	case ServerParameterDescription:
		return "ParameterDescription"
	case ServerParameterStatus:
		return "ParameterStatus"
	case ServerParseComplete:
		return "ParseComplete"
	case ServerPortalSuspended:
		return "PortalSuspended"
	case ServerReady:
		return "ReadyForQuery"
	case ServerRowDescription:
		return "RowDescription"
	default:
		return "Unknown"
	}
}

func (m DescribeMessage) String() string {
	switch m {
	case DescribePortal:
		return "Portal"
	case DescribeStatement:
		return "Statement"
	default:
		return "Unknown"
	}
}
