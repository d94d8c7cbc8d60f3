package agent

// Feature identifies a controllable capability on a device's agent.
type Feature string

// Features understood by the classroom agents.
const (
	FeatureScreenLock Feature = "screen_lock"
	FeatureInputLock  Feature = "input_lock"
	FeatureDemoServer Feature = "demo_server"
	FeatureDemoClient Feature = "demo_client"
	FeaturePowerDown  Feature = "power_down"
	FeatureReboot     Feature = "reboot"
	FeatureUserLogout Feature = "user_logout"
	FeaturePowerOn    Feature = "power_on"
)

// Argument keys for SetFeature calls.
const (
	// ArgDemoAccessToken carries the shared secret that demo clients present
	// to the demo server.
	ArgDemoAccessToken = "demoAccessToken"

	// ArgDemoServerHost tells a demo client which host streams the screen.
	ArgDemoServerHost = "demoServerHost"

	// ArgFullscreen selects fullscreen ("true") or windowed ("false")
	// presentation on a demo client.
	ArgFullscreen = "fullscreen"
)

// ScreenshotFormat is the encoding requested from the framebuffer endpoint.
type ScreenshotFormat string

// Supported screenshot formats. Not every agent build supports both; an
// unsupported format is rejected with CodeUnsupportedImageFormat and callers
// fall back to the next candidate.
const (
	FormatJPEG ScreenshotFormat = "jpeg"
	FormatPNG  ScreenshotFormat = "png"
)

// ScreenshotRequest describes a framebuffer capture.
type ScreenshotRequest struct {
	Format      ScreenshotFormat
	Quality     int // 1..100, JPEG only
	Compression int // 0..9, PNG only
	Width       int // 0 means native width
	Height      int // 0 means native height
}

// UserInfo is the agent's report of the interactively logged-in user.
type UserInfo struct {
	Login     string `json:"login"`
	FullName  string `json:"fullName"`
	SessionID int    `json:"session"`

	// TeacherLogin is set when the agent classifies the logged-in user as a
	// member of a teacher group. The classification comes from the directory
	// the agent is joined to; this client never computes it.
	TeacherLogin bool `json:"teacherLogin"`
}
