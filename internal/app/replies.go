package app

// Cosmetic reply pools; one entry is picked at random per scored answer.

var correctReplies = []string{
	"🔥 You rocked it! +4 points!",
	"🎉 Absolutely right! +4 points!",
	"✨ Brilliant answer! +4 points!",
	"🚀 Outstanding! +4 points!",
	"🏆 Perfect! +4 points!",
	"⭐ Excellent work! +4 points!",
	"🎯 Bullseye! +4 points!",
	"💯 Spot on! +4 points!",
}

var wrongReplies = []string{
	"😅 Oops! Better luck next time! -1 point",
	"💔 So close, yet so far! -1 point",
	"😔 Not quite right! -1 point",
	"🙈 Try again! -1 point",
	"😞 Almost there! -1 point",
	"😵 Wrong choice! -1 point",
}
