package queue

type ConvertRequest struct {
	UID       string  `yaml:"uid"`
	Source    string  `yaml:"source"`
	Width     int     `yaml:"width"`
	Rate      float64 `yaml:"rate"`
	Loop      bool    `yaml:"loop"`
	MaxFrames int     `yaml:"maxFrames,omitempty"`
}

type ConvertResponse struct {
	UID      string `yaml:"uid"`
	Source   string `yaml:"source,omitempty"`
	Output   string `yaml:"output,omitempty"`
	Size     int64  `yaml:"size,omitempty"`
	Frames   int    `yaml:"frames,omitempty"`
	Duration string `yaml:"duration,omitempty"`
	Error    string `yaml:"error,omitempty"`
}
