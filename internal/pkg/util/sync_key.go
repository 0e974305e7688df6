package util

import (
	"regexp"
	"strconv"
)

var syncKeyRegex = regexp.MustCompile(`^story_(\d+)_chapter_(\d+)$`)

// BuildSyncKey 生成离线快照键
func BuildSyncKey(storyID, chapterID uint64) string {
	return "story_" + strconv.FormatUint(storyID, 10) + "_chapter_" + strconv.FormatUint(chapterID, 10)
}

// ParseSyncKey 解析 story_<id>_chapter_<id>，作品 ID 必须大于 0
func ParseSyncKey(key string) (storyID, chapterID uint64, ok bool) {
	m := syncKeyRegex.FindStringSubmatch(key)
	if m == nil {
		return 0, 0, false
	}
	storyID, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || storyID == 0 {
		return 0, 0, false
	}
	chapterID, err = strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return storyID, chapterID, true
}
