// Package transcript assembles per-participant recognition results into a
// single ordered, speaker-attributed transcript.
package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/voxrecap/pkg/provider/stt"
)

// User-facing markers. The summary stage recognises them as "no content".
const (
	// NoSpeechMarker replaces the text of a participant whose file held no
	// recognisable words.
	NoSpeechMarker = "(sem fala detectada)"

	// NoSpeechInRecording is rendered for a transcript without any file and
	// fed to the summary stage when no file contained words.
	NoSpeechInRecording = "(Nenhuma fala detectada na gravação)"

	// UnrecognizableMessage is rendered when no file could be processed.
	UnrecognizableMessage = "(Não foi possível reconhecer fala nos arquivos de áudio. Verifique se o microfone está funcionando corretamente e tente novamente.)"
)

// FileResult is the recognition outcome of one participant file.
type FileResult struct {
	Speaker string
	Result  *stt.Result
	// Err marks the file as unusable; its Result is ignored.
	Err error
}

// Segment is one unit of transcript text.
type Segment struct {
	Speaker string
	Text    string
	// Offset is the position in the participant's audio. Only meaningful
	// when Timed is set.
	Offset time.Duration
	Timed  bool
}

// Block holds the segments of one file. A block without segments stands for
// a participant whose audio carried no words.
type Block struct {
	Speaker  string
	Segments []Segment
}

// Empty reports whether the block has no speech.
func (b Block) Empty() bool { return len(b.Segments) == 0 }

// Text returns the block's words joined by spaces.
func (b Block) Text() string {
	parts := make([]string, len(b.Segments))
	for i, s := range b.Segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// Transcript is the assembled result of a session.
//
// The zero value is a valid transcript with no speech. Unrecognizable is a
// distinct state meaning that no file could be recognised at all.
type Transcript struct {
	Blocks         []Block
	Unrecognizable bool
}

// Assemble builds a transcript with one block per usable file, in input
// order. Files with Err set are skipped; if that leaves none the transcript
// is unrecognizable.
func Assemble(files []FileResult) Transcript {
	var t Transcript
	for _, f := range files {
		if f.Err != nil {
			continue
		}
		t.Blocks = append(t.Blocks, assembleBlock(f))
	}
	if len(t.Blocks) == 0 {
		return Transcript{Unrecognizable: true}
	}
	return t
}

func assembleBlock(f FileResult) Block {
	b := Block{Speaker: f.Speaker}
	res := f.Result
	if res.Empty() {
		return b
	}
	if len(res.Words) > 0 {
		for _, w := range res.Words {
			word := strings.TrimSpace(w.Word)
			if word == "" {
				continue
			}
			b.Segments = append(b.Segments, Segment{
				Speaker: f.Speaker,
				Text:    word,
				Offset:  w.Start,
				Timed:   true,
			})
		}
		if len(b.Segments) > 0 {
			return b
		}
	}
	if text := strings.TrimSpace(res.Text); text != "" {
		b.Segments = []Segment{{Speaker: f.Speaker, Text: text}}
	}
	return b
}

// HasSpeech reports whether any block carries words.
func (t Transcript) HasSpeech() bool {
	for _, b := range t.Blocks {
		if !b.Empty() {
			return true
		}
	}
	return false
}

// WordCount returns the number of whitespace-separated words.
func (t Transcript) WordCount() int {
	n := 0
	for _, b := range t.Blocks {
		for _, s := range b.Segments {
			n += len(strings.Fields(s.Text))
		}
	}
	return n
}

// String renders the transcript for display. Timed words render as
// "[MM:SS] Speaker: word", untimed text as "[Speaker] text" and a block
// without words as "[Speaker] (sem fala detectada)"; blocks are separated by
// a blank line. Only a transcript without blocks renders as
// [NoSpeechInRecording].
func (t Transcript) String() string {
	if t.Unrecognizable {
		return UnrecognizableMessage
	}
	if len(t.Blocks) == 0 {
		return NoSpeechInRecording
	}
	var sb strings.Builder
	for i, b := range t.Blocks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if b.Empty() {
			fmt.Fprintf(&sb, "[%s] %s", b.Speaker, NoSpeechMarker)
			continue
		}
		for j, s := range b.Segments {
			if j > 0 {
				sb.WriteByte(' ')
			}
			if s.Timed {
				fmt.Fprintf(&sb, "[%s] %s: %s", Timestamp(s.Offset), s.Speaker, s.Text)
			} else {
				fmt.Fprintf(&sb, "[%s] %s", s.Speaker, s.Text)
			}
		}
	}
	return sb.String()
}

// Plain renders "Speaker: text" lines for blocks with speech, the form fed
// to the summary stage. Transcripts without speech render their marker.
func (t Transcript) Plain() string {
	if t.Unrecognizable {
		return UnrecognizableMessage
	}
	var lines []string
	for _, b := range t.Blocks {
		if b.Empty() {
			continue
		}
		lines = append(lines, b.Speaker+": "+b.Text())
	}
	if len(lines) == 0 {
		return NoSpeechInRecording
	}
	return strings.Join(lines, "\n")
}

// Timestamp formats d as MM:SS. Minutes are not capped at 59.
func Timestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// SpeakerLabel names a participant. The display name wins when known;
// otherwise the label is derived from the participant identifier.
func SpeakerLabel(participantID, displayName string) string {
	if name := strings.TrimSpace(displayName); name != "" {
		return name
	}
	if participantID == "" {
		return "Usuário"
	}
	return "Usuário " + participantID
}
