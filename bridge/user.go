package bridge

import (
	"github.com/project-slippi/slippi-exi/exi"
	"github.com/project-slippi/slippi-exi/user"
)

// UserAttemptLogin tries a synchronous login from the credential file.
func UserAttemptLogin(h Handle) bool {
	var ok bool
	withDevice(h, func(d *exi.Device) { ok = d.Users.AttemptLogin() })
	return ok
}

// UserOpenLoginPage launches the browser login flow.
func UserOpenLoginPage(h Handle) {
	withDevice(h, func(d *exi.Device) { d.Users.OpenLoginPage() })
}

// UserUpdateApp launches the update flow, reporting whether it started.
func UserUpdateApp(h Handle) bool {
	var ok bool
	withDevice(h, func(d *exi.Device) { ok = d.Users.UpdateApp() })
	return ok
}

// UserListenForLogin starts the credential file watcher.
func UserListenForLogin(h Handle) {
	withDevice(h, func(d *exi.Device) { d.Users.ListenForLogin() })
}

// UserLogout deletes the credential file and resets auth state.
func UserLogout(h Handle) {
	withDevice(h, func(d *exi.Device) { d.Users.Logout() })
}

// UserOverwriteLatestVersion updates the cached latest-release version.
func UserOverwriteLatestVersion(h Handle, version string) {
	withDevice(h, func(d *exi.Device) { d.Users.OverwriteLatestVersion(version) })
}

// UserIsLoggedIn reports the current auth state.
func UserIsLoggedIn(h Handle) bool {
	var ok bool
	withDevice(h, func(d *exi.Device) { ok = d.Users.IsLoggedIn() })
	return ok
}

// UserGetInfo snapshots the current user and returns an owned handle. The
// caller must release it with UserFreeInfo.
func UserGetInfo(h Handle) Handle {
	var info user.Info
	withDevice(h, func(d *exi.Device) { info = d.Users.Get() })
	return handles.insert(&info)
}

// UserInfoValue reads the snapshot behind an info handle. Returns false for
// an unknown or already-freed handle.
func UserInfoValue(info Handle) (user.Info, bool) {
	v, ok := handles.get(info).(*user.Info)
	if !ok {
		return user.Info{}, false
	}
	return *v, true
}

// UserFreeInfo releases an info snapshot handle.
func UserFreeInfo(info Handle) {
	handles.take(info)
}

// UserGetMessages returns an owned handle to the user's chat messages, or
// the defaults when none are configured. Release with UserFreeMessages.
func UserGetMessages(h Handle) Handle {
	var messages []string
	withDevice(h, func(d *exi.Device) { messages = d.Users.Messages() })
	return handles.insert(messages)
}

// UserGetDefaultMessages returns an owned handle to the built-in chat
// message set.
func UserGetDefaultMessages(Handle) Handle {
	return handles.insert(user.DefaultMessages())
}

// UserMessagesValue reads the message list behind a handle.
func UserMessagesValue(messages Handle) ([]string, bool) {
	v, ok := handles.get(messages).([]string)
	return v, ok
}

// UserFreeMessages releases a chat message set handle.
func UserFreeMessages(messages Handle) {
	handles.take(messages)
}
