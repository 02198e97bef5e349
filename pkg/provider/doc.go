// Package provider defines the completion interface the chat session talks
// to and its implementations for the OpenAI and Perplexity chat APIs.
//
// Adapters translate an ordered message list plus generation options into a
// single completion call. They report failures as *Error values whose Kind
// separates credential problems, throttling, transient transport failures,
// backend rejections and undecodable responses.
package provider
