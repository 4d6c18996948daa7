package dispatcher

import (
	"github.com/thea-remote/hostd/internal/sessionmgr"
	"github.com/thea-remote/hostd/internal/wire"
)

// RequiredPermission implements the data model's static per-variant
// permission mapping. Ping/pong/disconnect/error carry no requirement
// (handled outside the permission gate); unknown types return ok=false
// so the dispatcher replies with an unknown-tag error instead of a
// permission error.
func RequiredPermission(msg wire.Message) (perm sessionmgr.Permission, ok bool) {
	switch msg.Type {
	case wire.TypeScreenRequest:
		var p wire.ScreenRequestPayload
		msg.Decode(&p)
		if p.Operation == wire.ScreenOpCapture {
			return sessionmgr.PermissionViewScreen, true
		}
		return sessionmgr.PermissionViewScreen, true
	case wire.TypeInputRequest:
		return sessionmgr.PermissionControlScreen, true
	case wire.TypeFileRequest:
		var p wire.FileRequestPayload
		msg.Decode(&p)
		switch p.Operation {
		case wire.FileOpList, wire.FileOpInfo:
			return sessionmgr.PermissionViewFiles, true
		case wire.FileOpRead, wire.FileOpDownload:
			return sessionmgr.PermissionReadFiles, true
		case wire.FileOpWrite, wire.FileOpUpload, wire.FileOpMove, wire.FileOpCopy:
			return sessionmgr.PermissionWriteFiles, true
		case wire.FileOpDelete:
			return sessionmgr.PermissionDeleteFiles, true
		default:
			return sessionmgr.PermissionViewFiles, true
		}
	case wire.TypeSystemRequest:
		var p wire.SystemRequestPayload
		msg.Decode(&p)
		if p.Operation == wire.SystemOpExecuteCommand {
			return sessionmgr.PermissionExecuteCommands, true
		}
		return sessionmgr.PermissionSystemControl, true
	case wire.TypeClipboardRequest:
		return sessionmgr.PermissionControlScreen, true
	case wire.TypeAnnotationRequest:
		return sessionmgr.PermissionControlScreen, true
	case wire.TypeRecordingRequest:
		return sessionmgr.PermissionSystemControl, true
	case wire.TypeAudioRequest:
		return sessionmgr.PermissionViewScreen, true
	case wire.TypeInventoryRequest:
		return sessionmgr.PermissionSystemControl, true
	case wire.TypeNetworkProxyRequest:
		return sessionmgr.PermissionNetworkAccess, true
	case wire.TypeInferenceRelayRequest:
		return sessionmgr.PermissionInferenceRelay, true
	case wire.TypePing, wire.TypePong, wire.TypeDisconnect, wire.TypeChat, wire.TypeError:
		return "", false
	default:
		return "", false
	}
}

// responseTypeFor returns the error-reply variant for a given request
// type, so permission/validation errors can be answered with the
// correctly paired response tag.
func responseTypeFor(reqType wire.Type) wire.Type {
	switch reqType {
	case wire.TypeScreenRequest:
		return wire.TypeScreenResponse
	case wire.TypeInputRequest:
		return wire.TypeInputResponse
	case wire.TypeFileRequest:
		return wire.TypeFileResponse
	case wire.TypeSystemRequest:
		return wire.TypeSystemResponse
	case wire.TypeClipboardRequest:
		return wire.TypeClipboardResponse
	case wire.TypeAnnotationRequest:
		return wire.TypeAnnotationResponse
	case wire.TypeRecordingRequest:
		return wire.TypeRecordingResponse
	case wire.TypeAudioRequest:
		return wire.TypeAudioResponse
	case wire.TypeInventoryRequest:
		return wire.TypeInventoryResponse
	case wire.TypeNetworkProxyRequest:
		return wire.TypeNetworkProxyResponse
	case wire.TypeInferenceRelayRequest:
		return wire.TypeInferenceRelayResponse
	default:
		return wire.TypeError
	}
}
