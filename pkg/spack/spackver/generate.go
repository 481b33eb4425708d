// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package spackver

import (
	"math/rand"
	"reflect"
	"testing/quick"

	"k8s.io/apimachinery/pkg/util/intstr"
)

func randBool(rand *rand.Rand) bool {
	return rand.Intn(2) == 1
}

func (v Version) generate(rand *rand.Rand, size int) Version {
	if size < 1 {
		size = 1
	}
	v.Release = make([]intstr.IntOrString, 1+rand.Intn(4))
	for i := range v.Release {
		v.Release[i] = intstr.FromInt(rand.Intn(size))
	}
	if randBool(rand) {
		kinds := []TagKind{TagDev, TagAlpha, TagBeta, TagRC, TagPost}
		v.Tail = []Tag{{
			Kind: kinds[rand.Intn(len(kinds))],
			N:    rand.Intn(size),
		}}
		if v.Tail[0].Kind != TagDev && randBool(rand) {
			v.Tail = append(v.Tail, Tag{Kind: TagDev, N: rand.Intn(size)})
		}
	}
	return v
}

// Generate implements testing/quick.Generator.
func (v Version) Generate(rand *rand.Rand, size int) reflect.Value {
	return reflect.ValueOf(v.generate(rand, size))
}

//nolint:exhaustivestruct
var _ quick.Generator = Version{}
