package usecases

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"smartbot/internal/entities"
)

func testCatalog() []entities.Intent {
	return []entities.Intent{
		{ID: 1, Name: "greeting", Keywords: "hello, hi, good morning"},
		{ID: 2, Name: "question", Keywords: "how, what, why, when"},
		{ID: 3, Name: "problem", Keywords: "broken, error, issue, bug"},
		{ID: 4, Name: "thanks", Keywords: "thanks, thank you"},
	}
}

func TestKeywordClassification(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantTop    string
		wantScore  float64
		wantRanked int
	}{
		{
			name:       "single full match",
			body:       "hello there, hi everyone, good morning to all",
			wantTop:    "greeting",
			wantScore:  1.0,
			wantRanked: 1,
		},
		{
			name:       "partial ratio",
			body:       "how does it work",
			wantTop:    "question",
			wantScore:  0.25,
			wantRanked: 1,
		},
		{
			name:       "higher ratio wins",
			body:       "hello, how are you and what do you need",
			wantTop:    "question", // 2/4 = 0.5 beats greeting 1/3
			wantScore:  0.5,
			wantRanked: 2,
		},
		{
			name:       "case insensitive",
			body:       "HELLO WORLD",
			wantTop:    "greeting",
			wantScore:  1.0 / 3.0,
			wantRanked: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemMessages()
			c := NewIntentClassifier(nil, store, zerolog.Nop())
			msg := store.add(entities.Message{Body: tt.body, Status: entities.StatusReceived})

			ranked := c.Classify(context.Background(), msg, testCatalog())
			if len(ranked) != tt.wantRanked {
				t.Fatalf("got %d ranked intents, want %d", len(ranked), tt.wantRanked)
			}
			if ranked[0].Intent.Name != tt.wantTop {
				t.Errorf("top intent = %s, want %s", ranked[0].Intent.Name, tt.wantTop)
			}
			if ranked[0].Confidence != tt.wantScore {
				t.Errorf("confidence = %v, want %v", ranked[0].Confidence, tt.wantScore)
			}
		})
	}
}

func TestKeywordClassificationIsDeterministic(t *testing.T) {
	store := newMemMessages()
	c := NewIntentClassifier(nil, store, zerolog.Nop())
	msg := store.add(entities.Message{Body: "hello, how are you, thanks thank you", Status: entities.StatusReceived})

	first := c.Classify(context.Background(), msg, testCatalog())
	for i := 0; i < 10; i++ {
		again := c.Classify(context.Background(), msg, testCatalog())
		if len(again) != len(first) {
			t.Fatalf("run %d: got %d results, want %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j].Intent.ID != first[j].Intent.ID || again[j].Confidence != first[j].Confidence {
				t.Fatalf("run %d: result %d differs: got %v, want %v", i, j, again[j], first[j])
			}
		}
	}
}

func TestKeywordTieKeepsCatalogOrder(t *testing.T) {
	catalog := []entities.Intent{
		{ID: 1, Name: "alpha", Keywords: "ping"},
		{ID: 2, Name: "beta", Keywords: "pong"},
	}
	store := newMemMessages()
	c := NewIntentClassifier(nil, store, zerolog.Nop())
	msg := store.add(entities.Message{Body: "ping pong", Status: entities.StatusReceived})

	ranked := c.Classify(context.Background(), msg, catalog)
	if len(ranked) != 2 {
		t.Fatalf("got %d results, want 2", len(ranked))
	}
	if ranked[0].Intent.Name != "alpha" || ranked[1].Intent.Name != "beta" {
		t.Errorf("tie order = %s, %s; want alpha, beta", ranked[0].Intent.Name, ranked[1].Intent.Name)
	}
}

func TestKeywordClassificationNoMatch(t *testing.T) {
	store := newMemMessages()
	c := NewIntentClassifier(nil, store, zerolog.Nop())
	msg := store.add(entities.Message{Body: "zzz qqq", Status: entities.StatusReceived})

	if ranked := c.Classify(context.Background(), msg, testCatalog()); len(ranked) != 0 {
		t.Errorf("got %d results, want 0", len(ranked))
	}
	if len(store.links) != 0 {
		t.Errorf("recorded %d intent links, want 0", len(store.links))
	}
}

func TestClassifyEmptyCatalog(t *testing.T) {
	store := newMemMessages()
	c := NewIntentClassifier(&fakeCompleter{available: true, reply: "greeting|0.9"}, store, zerolog.Nop())
	msg := store.add(entities.Message{Body: "hello", Status: entities.StatusReceived})

	if ranked := c.Classify(context.Background(), msg, nil); ranked != nil {
		t.Errorf("got %v, want nil for empty catalog", ranked)
	}
}

func TestModelClassification(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		err       error
		wantModel bool // model verdict used instead of keyword fallback
		wantTop   string
		wantScore float64
	}{
		{name: "well formed", reply: "question|0.85", wantModel: true, wantTop: "question", wantScore: 0.85},
		{name: "whitespace tolerated", reply: "  problem | 0.7 \n", wantModel: true, wantTop: "problem", wantScore: 0.7},
		{name: "fuzzy name match", reply: "greet|0.9", wantModel: true, wantTop: "greeting", wantScore: 0.9},
		{name: "missing separator", reply: "question 0.85"},
		{name: "score not a number", reply: "question|high"},
		{name: "score above one", reply: "question|1.5"},
		{name: "score below zero", reply: "question|-0.1"},
		{name: "unknown intent", reply: "refund|0.9"},
		{name: "empty name", reply: "|0.9"},
		{name: "completion error", err: errBoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemMessages()
			completer := &fakeCompleter{available: true, reply: tt.reply, err: tt.err}
			c := NewIntentClassifier(completer, store, zerolog.Nop())
			msg := store.add(entities.Message{Body: "hello, is something broken?", Status: entities.StatusReceived})

			ranked := c.Classify(context.Background(), msg, testCatalog())
			if len(ranked) == 0 {
				t.Fatal("got no results")
			}

			if tt.wantModel {
				if len(ranked) != 1 {
					t.Fatalf("model path returned %d results, want 1", len(ranked))
				}
				if ranked[0].Intent.Name != tt.wantTop || ranked[0].Confidence != tt.wantScore {
					t.Errorf("got %s/%v, want %s/%v", ranked[0].Intent.Name, ranked[0].Confidence, tt.wantTop, tt.wantScore)
				}
				return
			}

			// Fallback path: keyword scoring over the same body finds
			// greeting (1/3) and problem (1/4).
			if len(ranked) != 2 || ranked[0].Intent.Name != "greeting" {
				t.Errorf("fallback ranked = %v, want greeting first of 2", ranked)
			}
		})
	}
}

func TestModelUnavailableSkipsCompletion(t *testing.T) {
	store := newMemMessages()
	completer := &fakeCompleter{available: false, reply: "question|0.9"}
	c := NewIntentClassifier(completer, store, zerolog.Nop())
	msg := store.add(entities.Message{Body: "hello", Status: entities.StatusReceived})

	ranked := c.Classify(context.Background(), msg, testCatalog())
	if completer.calls != 0 {
		t.Errorf("completer called %d times, want 0", completer.calls)
	}
	if len(ranked) != 1 || ranked[0].Intent.Name != "greeting" {
		t.Errorf("got %v, want keyword greeting", ranked)
	}
}

func TestClassificationRecordsIntentLinks(t *testing.T) {
	store := newMemMessages()
	c := NewIntentClassifier(nil, store, zerolog.Nop())
	msg := store.add(entities.Message{Body: "hello, what is broken", Status: entities.StatusReceived})

	c.Classify(context.Background(), msg, testCatalog())
	if len(store.links) != 3 {
		t.Fatalf("recorded %d links, want 3", len(store.links))
	}
	for _, link := range store.links {
		if link.MessageID != msg.ID {
			t.Errorf("link message id = %d, want %d", link.MessageID, msg.ID)
		}
		if link.Confidence <= 0 || link.Confidence > 1 {
			t.Errorf("link confidence = %v, want (0, 1]", link.Confidence)
		}
	}

	// Re-classifying appends, it never clears earlier links.
	c.Classify(context.Background(), msg, testCatalog())
	if len(store.links) != 6 {
		t.Errorf("after reclassification recorded %d links, want 6", len(store.links))
	}
}

func TestModelClassificationRecordsSingleLink(t *testing.T) {
	store := newMemMessages()
	c := NewIntentClassifier(&fakeCompleter{available: true, reply: "thanks|0.95"}, store, zerolog.Nop())
	msg := store.add(entities.Message{Body: "thank you so much", Status: entities.StatusReceived})

	c.Classify(context.Background(), msg, testCatalog())
	if len(store.links) != 1 {
		t.Fatalf("recorded %d links, want 1", len(store.links))
	}
	if store.links[0].IntentID != 4 || store.links[0].Confidence != 0.95 {
		t.Errorf("link = %+v, want intent 4 confidence 0.95", store.links[0])
	}
}
