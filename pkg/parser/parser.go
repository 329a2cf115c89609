// Milestone
// Copyright (c) 2026 The Milestone Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Milestone.
//
// Milestone is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Milestone is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Milestone.  If not, see <http://www.gnu.org/licenses/>.

// Package parser extracts media metadata from file names and paths. It
// recognizes common TV episode and movie naming schemes and falls back to
// directory hints when the filename alone is ambiguous.
package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/milestone-media/milestone/pkg/database"
)

// ParsedMedia is what could be recovered from a file name. Title is nil only
// when nothing usable was found.
type ParsedMedia struct {
	Title   *string
	Year    *int64
	Season  *int64
	Episode *int64
	Type    string
}

// TV patterns are tried in order, most specific first.
var tvPatterns = []*regexp.Regexp{
	// Breaking.Bad.S01E02
	regexp.MustCompile(`(?i)^(.+?)[.\s_-]+S(\d{1,2})E(\d{1,2})`),
	// Breaking Bad 1x02
	regexp.MustCompile(`(?i)^(.+?)[.\s_-]+(\d{1,2})x(\d{1,2})`),
	// Breaking Bad Season 1 Episode 2
	regexp.MustCompile(`(?i)^(.+?)[.\s_-]+Season\s*(\d{1,2})\s*Episode\s*(\d{1,2})`),
	// Breaking Bad S01.E02, S01-E02
	regexp.MustCompile(`(?i)^(.+?)[.\s_-]+S(\d{1,2})[.\s_-]*E(\d{1,2})`),
}

var moviePatterns = []*regexp.Regexp{
	// The Matrix (1999)
	regexp.MustCompile(`^(.+?)\s*\((\d{4})\)`),
	// The.Matrix.1999
	regexp.MustCompile(`^(.+?)[.\s_-]+(\d{4})(?:[.\s_-]|$)`),
}

var extensionPattern = regexp.MustCompile(`\.[^.]+$`)

var seasonDirPattern = regexp.MustCompile(`(?i)^season\s*(\d+)`)

var videoExtensions = map[string]bool{
	"mp4": true, "mkv": true, "avi": true, "mov": true, "wmv": true,
	"flv": true, "webm": true, "m4v": true, "mpg": true, "mpeg": true,
	"ts": true, "m2ts": true, "vob": true,
}

// IsVideoFile reports whether the path has a known video extension.
func IsVideoFile(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return videoExtensions[ext]
}

// CleanTitle normalizes a raw title fragment: separators become spaces,
// whitespace collapses, and each word is capitalized.
func CleanTitle(title string) string {
	title = strings.Map(func(r rune) rune {
		if r == '.' || r == '_' {
			return ' '
		}
		return r
	}, title)
	words := strings.Fields(title)
	for i, word := range words {
		words[i] = capitalizeWord(word)
	}
	return strings.Join(words, " ")
}

func capitalizeWord(word string) string {
	runes := []rune(word)
	prevLetter := false
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if prevLetter {
				runes[i] = unicode.ToLower(r)
			} else {
				runes[i] = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
	}
	return string(runes)
}

// ParseFilename extracts media metadata from a bare file name.
func ParseFilename(filename string) ParsedMedia {
	name := extensionPattern.ReplaceAllString(filename, "")

	for _, pattern := range tvPatterns {
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		title := CleanTitle(match[1])
		season, _ := strconv.ParseInt(match[2], 10, 64)
		episode, _ := strconv.ParseInt(match[3], 10, 64)
		return ParsedMedia{
			Type:    database.MediaTypeTVEpisode,
			Title:   &title,
			Season:  &season,
			Episode: &episode,
		}
	}

	for _, pattern := range moviePatterns {
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		year, _ := strconv.ParseInt(match[2], 10, 64)
		if year < 1900 || year > 2100 {
			continue
		}
		title := CleanTitle(match[1])
		return ParsedMedia{
			Type:  database.MediaTypeMovie,
			Title: &title,
			Year:  &year,
		}
	}

	title := CleanTitle(name)
	return ParsedMedia{
		Type:  database.MediaTypeUnknown,
		Title: &title,
	}
}

// ParsePath parses a full path, falling back to directory hints when the
// filename alone gives nothing. A "Season N" parent folder marks the file as
// a TV episode and the grandparent supplies the show title.
func ParsePath(path string) ParsedMedia {
	result := ParseFilename(filepath.Base(path))
	if result.Type != database.MediaTypeUnknown {
		return result
	}

	parent := filepath.Dir(path)
	match := seasonDirPattern.FindStringSubmatch(filepath.Base(parent))
	if match == nil {
		return result
	}

	season, _ := strconv.ParseInt(match[1], 10, 64)
	result.Season = &season
	result.Type = database.MediaTypeTVEpisode

	grandparent := filepath.Base(filepath.Dir(parent))
	if grandparent != "" && grandparent != "." && grandparent != string(filepath.Separator) {
		title := CleanTitle(grandparent)
		result.Title = &title
	}
	return result
}
