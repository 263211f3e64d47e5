package taunt

// Line is one catalog entry.
type Line struct {
	ID      string
	Emotion Emotion
	Text    string
}

// catalog is the built-in line set. IDs are stable so clients can localize
// or re-skin lines without the server caring.
var catalog = []Line{
	{ID: "gloat-01", Emotion: EmotionGloat, Text: "Back to base you go!"},
	{ID: "gloat-02", Emotion: EmotionGloat, Text: "Did that hurt? Good."},
	{ID: "gloat-03", Emotion: EmotionGloat, Text: "Thanks for the free square."},
	{ID: "gloat-04", Emotion: EmotionGloat, Text: "You walked right into that one."},
	{ID: "gloat-05", Emotion: EmotionGloat, Text: "I'd apologize, but I'm not sorry."},

	{ID: "rage-01", Emotion: EmotionRage, Text: "You'll regret that."},
	{ID: "rage-02", Emotion: EmotionRage, Text: "Enjoy it while it lasts."},
	{ID: "rage-03", Emotion: EmotionRage, Text: "That token had a family!"},
	{ID: "rage-04", Emotion: EmotionRage, Text: "Noted. And remembered."},

	{ID: "mock-01", Emotion: EmotionMock, Text: "Swing and a miss."},
	{ID: "mock-02", Emotion: EmotionMock, Text: "So close! Not really."},
	{ID: "mock-03", Emotion: EmotionMock, Text: "You can't catch me."},
	{ID: "mock-04", Emotion: EmotionMock, Text: "Was that your big play?"},

	{ID: "menace-01", Emotion: EmotionMenace, Text: "This wall isn't moving."},
	{ID: "menace-02", Emotion: EmotionMenace, Text: "Try getting past that."},
	{ID: "menace-03", Emotion: EmotionMenace, Text: "I'm coming for you next."},
	{ID: "menace-04", Emotion: EmotionMenace, Text: "Almost there. Nothing can stop me now."},

	{ID: "cheer-01", Emotion: EmotionCheer, Text: "Home sweet home!"},
	{ID: "cheer-02", Emotion: EmotionCheer, Text: "Six! The dice love me today."},
	{ID: "cheer-03", Emotion: EmotionCheer, Text: "And that's how it's done."},
	{ID: "cheer-04", Emotion: EmotionCheer, Text: "The comeback is real!"},

	{ID: "despair-01", Emotion: EmotionDespair, Text: "These dice are broken, I swear."},
	{ID: "despair-02", Emotion: EmotionDespair, Text: "I just need one six. One."},
	{ID: "despair-03", Emotion: EmotionDespair, Text: "Wake me up when I can move."},

	{ID: "revenge-01", Emotion: EmotionRevenge, Text: "That was for last time."},
	{ID: "revenge-02", Emotion: EmotionRevenge, Text: "Payback tastes sweet."},
	{ID: "revenge-03", Emotion: EmotionRevenge, Text: "Told you I'd remember."},
}

// linesFor returns the catalog slice for an emotion.
func linesFor(emotion Emotion) []Line {
	var out []Line
	for _, l := range catalog {
		if l.Emotion == emotion {
			out = append(out, l)
		}
	}
	return out
}
