// Package logging wraps zerolog behind an emoji/smart Logger shape, so call
// sites stay readable while every line becomes a structured zerolog event
// underneath.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Settings struct {
	Save        bool
	FilePath    string
	Emoji       bool
	ShowSeconds bool
	Debug       bool
}

// Logger is the interface the rest of the module programs against.
type Logger struct {
	z     zerolog.Logger
	emoji bool
}

func New(settings Settings, extra ...io.Writer) *Logger {
	var writers []io.Writer
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat(settings.ShowSeconds)}
	writers = append(writers, consoleWriter)

	if settings.Save && settings.FilePath != "" {
		if f, err := os.OpenFile(settings.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			writers = append(writers, f)
		}
	}
	writers = append(writers, extra...)

	level := zerolog.InfoLevel
	if settings.Debug {
		level = zerolog.DebugLevel
	}

	z := zerolog.New(io.MultiWriter(writers...)).Level(level).With().Timestamp().Logger()
	return &Logger{z: z, emoji: settings.Emoji}
}

func timeFormat(seconds bool) string {
	if seconds {
		return "15:04:05 02/01/06"
	}
	return "15:04 02/01/06"
}

// With returns a child logger carrying a streamer/channel field, the way
// per-broadcaster log lines are scoped throughout the module.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{z: l.z.With().Str(key, value).Logger(), emoji: l.emoji}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	l.z.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.z.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.z.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.z.Fatal().Msg(fmt.Sprintf(format, args...))
}

// EmojiPrintf prefixes an emoji shorthand (":rocket:", ":moneybag:", ...)
// when the logger was configured with Emoji enabled.
func (l *Logger) EmojiPrintf(emoji, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.emoji {
		msg = fmt.Sprintf("%s %s", emojize(emoji), msg)
	}
	l.z.Info().Msg(msg)
}

func (l *Logger) DebugEnabled() bool {
	return l.z.GetLevel() <= zerolog.DebugLevel
}

var emojiMap = map[string]string{
	":rocket:":                 "\U0001F680",
	":moneybag:":               "\U0001F4B0",
	":green_circle:":           "\U0001F7E2",
	":white_check_mark:":       "✅",
	":package:":                "\U0001F4E6",
	":hourglass:":              "⌛",
	":hourglass_flowing_sand:": "⏳",
	":speech_balloon:":         "\U0001F4AC",
	":partying_face:":          "\U0001F973",
	":sleeping:":               "\U0001F634",
	":stop_sign:":              "\U0001F6D1",
	":page_facing_up:":         "\U0001F4C4",
	":gift:":                   "\U0001F381",
	":clipboard:":              "\U0001F4CB",
	":cry:":                    "\U0001F622",
	":disappointed_relieved:":  "\U0001F625",
}

func emojize(code string) string {
	if v, ok := emojiMap[code]; ok {
		return v
	}
	return code
}

// SanitizeFilename strips characters that are unsafe in a per-user log
// filename.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	return replacer.Replace(name)
}
