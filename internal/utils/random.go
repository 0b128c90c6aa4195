package utils

import (
	"math/rand"
	"sync"
	"time"
)

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const (
	letterIdxBits = 6
	letterIdxMask = 1<<letterIdxBits - 1
	letterIdxMax  = 63 / letterIdxBits
)

var (
	randSrc = rand.NewSource(time.Now().UnixNano())
	randMu  sync.Mutex
)

// RandStringBytesMaskImpr generates a random alphanumeric string of length n,
// used for the short public IDs of comments and images.
func RandStringBytesMaskImpr(n int) string {
	b := make([]byte, n)
	randMu.Lock()
	defer randMu.Unlock()
	for i, cache, remain := n-1, randSrc.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = randSrc.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}
	return string(b)
}
