//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import "fmt"

const (
	PermissionNotDetermined = 0
	PermissionRestricted    = 1
	PermissionDenied        = 2
	PermissionAuthorized    = 3
)

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() (int, error) {
	status := int(C.checkMicrophonePermission())
	return status, nil
}

// RequestMicrophone triggers the system microphone permission dialog
func RequestMicrophone() error {
	C.requestMicrophonePermission()
	return nil
}

// EnsureMicrophone requests access when it has not been granted yet.
// Capture of output devices goes through a loopback input and needs the same grant.
func EnsureMicrophone() error {
	status, _ := CheckMicrophone()
	switch status {
	case PermissionAuthorized:
		return nil
	case PermissionNotDetermined:
		RequestMicrophone()
		return fmt.Errorf("%w: grant access in the system dialog and restart", ErrMicrophoneDenied)
	default:
		return fmt.Errorf("%w: enable it in System Settings → Privacy & Security → Microphone", ErrMicrophoneDenied)
	}
}
