// Package telegram delivers scheduled posts through the Bot API.
//
// The Publisher is the dispatch queue's executor: it renders a post
// through a ContentSource, pushes it through a token-bucket limiter, and
// maps Bot API failures onto the retry taxonomy so the queue can decide
// whether a redelivery makes sense.
package telegram
