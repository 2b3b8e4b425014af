// Copyright 2026 Lukasz Bola. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// The invalidproducer command publishes deliberately broken order events,
// exercising the pipeline's invalid sink end to end.
package main

import (
	"os"

	"github.com/LukasBola/orderstream/internal/cli"
)

func main() {
	cli.ProducerMain("invalidproducer", os.Args[1:], true)
}
