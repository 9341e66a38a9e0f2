//go:build windows
// +build windows

package platform

import (
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsImpl struct {
	mouseHook     windows.Handle
	keyboardHook  windows.Handle
	inputCallback func(InputEvent)
	stopped       bool
	mu            sync.Mutex
}

var (
	user32   = windows.NewLazyDLL("user32.dll")
	kernel32 = windows.NewLazyDLL("kernel32.dll")
	psapi    = windows.NewLazyDLL("psapi.dll")

	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLength      = user32.NewProc("GetWindowTextLengthW")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetWindowRect            = user32.NewProc("GetWindowRect")
	procGetSystemMetrics         = user32.NewProc("GetSystemMetrics")
	procSetWindowsHookEx         = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx      = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx           = user32.NewProc("CallNextHookEx")

	procGetModuleFileNameEx = psapi.NewProc("GetModuleFileNameExW")
	procOpenProcess         = kernel32.NewProc("OpenProcess")
	procCloseHandle         = kernel32.NewProc("CloseHandle")
)

const (
	whMouseLL    = 14
	whKeyboardLL = 13

	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmRButtonDown = 0x0204
	wmMouseWheel  = 0x020A
	wmKeyDown     = 0x0100

	smCxScreen = 0
	smCyScreen = 1

	processQueryInformation = 0x0400
	processVMRead           = 0x0010
)

type point struct {
	X int32
	Y int32
}

type rect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// msLLHookStruct mirrors MSLLHOOKSTRUCT; only the cursor position is used.
type msLLHookStruct struct {
	Pt          point
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

func newWindowsPlatform() (Platform, error) {
	return &windowsImpl{}, nil
}

func (p *windowsImpl) GetForegroundWindow() (*WindowInfo, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return nil, fmt.Errorf("failed to get foreground window")
	}

	length, _, _ := procGetWindowTextLength.Call(hwnd)
	title := ""
	if length > 0 {
		length++ // include null terminator
		buf := make([]uint16, length)
		procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(length))
		title = windows.UTF16ToString(buf)
	}

	var processID uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&processID)))

	application := applicationName(processPath(int(processID)))

	return &WindowInfo{
		Title:        title,
		Application:  application,
		ProcessID:    int(processID),
		IsFullscreen: isFullscreen(hwnd),
		Timestamp:    time.Now(),
	}, nil
}

// isFullscreen reports whether the window covers the whole screen, with a
// small tolerance for borders and the taskbar.
func isFullscreen(hwnd uintptr) bool {
	var r rect
	if ret, _, _ := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r))); ret == 0 {
		return false
	}
	screenWidth, _, _ := procGetSystemMetrics.Call(smCxScreen)
	screenHeight, _, _ := procGetSystemMetrics.Call(smCyScreen)

	width := int(r.Right - r.Left)
	height := int(r.Bottom - r.Top)
	return width >= int(screenWidth)-10 && height >= int(screenHeight)-50
}

func processPath(processID int) string {
	if processID == 0 {
		return ""
	}

	handle, _, _ := procOpenProcess.Call(
		processQueryInformation|processVMRead,
		0,
		uintptr(processID),
	)
	if handle == 0 {
		return ""
	}
	defer procCloseHandle.Call(handle)

	buf := make([]uint16, 260)
	ret, _, _ := procGetModuleFileNameEx.Call(
		handle,
		0,
		uintptr(unsafe.Pointer(&buf[0])),
		260,
	)
	if ret == 0 {
		return ""
	}
	return windows.UTF16ToString(buf)
}

func applicationName(path string) string {
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "\\")
	name := parts[len(parts)-1]
	return strings.TrimSuffix(name, ".exe")
}

func (p *windowsImpl) StartInputMonitoring(callback func(InputEvent)) error {
	p.mu.Lock()
	p.inputCallback = callback
	p.stopped = false
	p.mu.Unlock()

	mouseHookProc := syscall.NewCallback(p.mouseHookProc)
	mouseHook, _, _ := procSetWindowsHookEx.Call(whMouseLL, mouseHookProc, 0, 0)
	if mouseHook == 0 {
		return fmt.Errorf("failed to set mouse hook")
	}
	p.mouseHook = windows.Handle(mouseHook)

	keyboardHookProc := syscall.NewCallback(p.keyboardHookProc)
	keyboardHook, _, _ := procSetWindowsHookEx.Call(whKeyboardLL, keyboardHookProc, 0, 0)
	if keyboardHook == 0 {
		procUnhookWindowsHookEx.Call(uintptr(p.mouseHook))
		p.mouseHook = 0
		return fmt.Errorf("failed to set keyboard hook")
	}
	p.keyboardHook = windows.Handle(keyboardHook)

	return nil
}

func (p *windowsImpl) StopInputMonitoring() error {
	p.mu.Lock()
	p.stopped = true
	p.inputCallback = nil

	// Remove hooks immediately - this is critical for process exit
	if p.mouseHook != 0 {
		procUnhookWindowsHookEx.Call(uintptr(p.mouseHook))
		p.mouseHook = 0
	}
	if p.keyboardHook != 0 {
		procUnhookWindowsHookEx.Call(uintptr(p.keyboardHook))
		p.keyboardHook = 0
	}
	p.mu.Unlock()

	// Give Windows time to process hook removal
	time.Sleep(100 * time.Millisecond)

	return nil
}

func (p *windowsImpl) mouseHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	p.mu.Lock()
	stopped := p.stopped
	callback := p.inputCallback
	p.mu.Unlock()

	if nCode >= 0 && !stopped && callback != nil {
		info := (*msLLHookStruct)(unsafe.Pointer(lParam))
		switch wParam {
		case wmMouseMove:
			callback(InputEvent{
				Type:      InputMouseMove,
				X:         int(info.Pt.X),
				Y:         int(info.Pt.Y),
				Timestamp: time.Now(),
			})
		case wmLButtonDown, wmRButtonDown:
			callback(InputEvent{
				Type:      InputMouseClick,
				X:         int(info.Pt.X),
				Y:         int(info.Pt.Y),
				Timestamp: time.Now(),
			})
		case wmMouseWheel:
			callback(InputEvent{
				Type:      InputMouseScroll,
				X:         int(info.Pt.X),
				Y:         int(info.Pt.Y),
				Timestamp: time.Now(),
			})
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func (p *windowsImpl) keyboardHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	p.mu.Lock()
	stopped := p.stopped
	callback := p.inputCallback
	p.mu.Unlock()

	// Only the fact that a key went down is reported, never which key
	if nCode >= 0 && wParam == wmKeyDown && !stopped && callback != nil {
		callback(InputEvent{
			Type:      InputKeyPress,
			Timestamp: time.Now(),
		})
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}
